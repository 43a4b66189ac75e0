package placeholder

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/garyjia/actas-satisfaccion/internal/models"
	"github.com/xuri/excelize/v2"
)

type transformFunc func(b Binding, s string) (string, error)

var transforms = map[string]transformFunc{
	"":           identity,
	"text":       identity,
	"upper":      func(_ Binding, s string) (string, error) { return strings.ToUpper(s), nil },
	"integer":    toInteger,
	"year":       dateField(func(t time.Time) string { return strconv.Itoa(t.Year()) }),
	"month":      dateField(func(t time.Time) string { return fmt.Sprintf("%02d", int(t.Month())) }),
	"month_name": dateField(func(t time.Time) string { return monthNames[t.Month()-1] }),
	"day":        dateField(func(t time.Time) string { return fmt.Sprintf("%02d", t.Day()) }),
	"date":       dateField(func(t time.Time) string { return t.Format("02/01/2006") }),
	"split":      splitPart,
}

var monthNames = [12]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

// Transforms lists the accepted transform names
func Transforms() []string {
	names := make([]string, 0, len(transforms))
	for name := range transforms {
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}

func identity(_ Binding, s string) (string, error) {
	return s, nil
}

func toInteger(_ Binding, s string) (string, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("%w: %q no es un número", models.ErrMalformedValue, s)
	}
	return strconv.FormatInt(int64(math.Round(f)), 10), nil
}

func dateField(format func(time.Time) string) transformFunc {
	return func(_ Binding, s string) (string, error) {
		t, err := parseCellDate(s)
		if err != nil {
			return "", err
		}
		return format(t), nil
	}
}

// parseCellDate accepts formatted dates and raw Excel serial numbers, which
// is what a date column without a date style comes back as.
func parseCellDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, ok := models.ParseDate(s); ok {
		return t, nil
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q no es una fecha", models.ErrMalformedValue, s)
}

func splitPart(b Binding, s string) (string, error) {
	sep := b.Separator
	if sep == "" {
		sep = ","
	}
	parts := strings.Split(s, sep)
	if b.Part >= len(parts) {
		return "", fmt.Errorf("%w: %q no tiene la parte %d separada por %q",
			models.ErrMalformedValue, s, b.Part+1, sep)
	}
	return strings.TrimSpace(parts[b.Part]), nil
}
