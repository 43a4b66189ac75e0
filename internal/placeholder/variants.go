package placeholder

import (
	"fmt"
	"sort"
)

// Built-in variant names
const (
	VariantSocializa    = "socializa"
	VariantSatisfaccion = "satisfaccion"
)

// LeaderSignatureField is the column the leader join fills in
const LeaderSignatureField = "FirmaLider"

func text(token, field string) Binding {
	return Binding{Token: token, Field: field, Kind: KindText}
}

func required(b Binding) Binding {
	b.Required = true
	return b
}

func signature(token, field, label string) Binding {
	return Binding{Token: token, Field: field, Kind: KindImage, Directory: DirSignatures, Label: label}
}

var variants = map[string]func() Map{
	// One column per token, two user signatures.
	VariantSocializa: func() Map {
		return Map{Name: VariantSocializa, Bindings: []Binding{
			required(text("@NOMBRE@", "NOMBRE")),
			required(text("@CEDULA@", "CEDULA")),
			text("@CALIDAD@", "CALIDAD"),
			text("@MUNICIPIO@", "MUNICIPIO"),
			text("@VEREDA@", "VEREDA"),
			text("@DIRECCION@", "DIRECCION"),
			text("@LATITUD@", "LATITUD"),
			text("@LONGITUD@", "LONGITUD"),
			text("@COMENTARIO_EDEQ@", "COMENTARIO_EDEQ"),
			text("@COMENTARIO_USUARIO@", "COMENTARIO_USUARIO"),
			text("@OT@", "OT"),
			signature("@FIRMA_AUTORIZA@", "Autorizacion", "autorización"),
			signature("@FIRMA_SATISFACCION@", "Satisfaccion", "satisfacción"),
		}}
	},
	// Derived fields and a third signature from the leaders workbook.
	VariantSatisfaccion: func() Map {
		vereda := text("@VEREDA@", "VEREDA")
		vereda.Fallback = []string{"BARRIO"}
		return Map{Name: VariantSatisfaccion, Bindings: []Binding{
			required(text("@NOMBRE@", "NOMBRE")),
			required(text("@CEDULA@", "CEDULA")),
			text("@CALIDAD@", "CALIDAD"),
			text("@MUNICIPIO@", "MUNICIPIO"),
			vereda,
			text("@DIRECCION@", "DIRECCION"),
			{Token: "@LATITUD@", Field: "COORDENADAS", Kind: KindText, Transform: "split", Separator: ",", Part: 0},
			{Token: "@LONGITUD@", Field: "COORDENADAS", Kind: KindText, Transform: "split", Separator: ",", Part: 1},
			{Token: "@CANTIDAD@", Field: "CANTIDAD", Kind: KindText, Transform: "integer"},
			{Token: "@DIA@", Field: "FECHA", Kind: KindText, Transform: "day", Required: true},
			{Token: "@MES@", Field: "FECHA", Kind: KindText, Transform: "month_name", Required: true},
			{Token: "@AÑO@", Field: "FECHA", Kind: KindText, Transform: "year", Required: true},
			text("@COMENTARIO_EDEQ@", "COMENTARIO_EDEQ"),
			text("@COMENTARIO_USUARIO@", "COMENTARIO_USUARIO"),
			text("@OT@", "OT"),
			text("@LIDER@", "LIDER"),
			signature("@FIRMA_AUTORIZA@", "FirmaAutorizacion", "autorización"),
			signature("@FIRMA_SATISFACCION@", "FirmaSatisfaccion", "satisfacción"),
			{Token: "@FIRMA_LIDER@", Field: LeaderSignatureField, Kind: KindImage,
				Directory: DirLeaders, Width: 1.5, Label: "líder"},
		}}
	},
}

// Variant returns a fresh copy of a built-in map
func Variant(name string) (Map, error) {
	build, ok := variants[name]
	if !ok {
		return Map{}, fmt.Errorf("unknown placeholder variant %q (known: %v)", name, Variants())
	}
	return build(), nil
}

// Variants lists the built-in map names
func Variants() []string {
	names := make([]string, 0, len(variants))
	for name := range variants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
