package models

import "errors"

// Failure classes. Messages are in Spanish because they end up in the
// summary workbook read by field staff.
var (
	ErrMissingField   = errors.New("campo faltante")
	ErrMissingAsset   = errors.New("archivo faltante")
	ErrMalformedValue = errors.New("valor con formato inválido")
	ErrDocumentBuild  = errors.New("no se pudo construir el documento")
	ErrConversion     = errors.New("no se pudo convertir a PDF")
	ErrSessionInit    = errors.New("no se pudo iniciar el conversor de PDF")
)
