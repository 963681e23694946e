package product

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/lestrrat-go/strftime"
)

// Product type tags used in file names and the product_type attribute.
const (
	TypeL1B  = "L1B"
	TypeL1BS = "L1BS"
)

const isoLayout = "%Y-%m-%dT%H:%M:%S"

// Info is the metadata stamped on every product.
type Info struct {
	Mission         string
	SoftwareVersion string
	// Epoch is the reference of the seconds-since-epoch record times.
	Epoch time.Time
	// TimestampFormat is the strftime layout of file name stamps.
	TimestampFormat string
	// Now overrides the creation clock; nil means time.Now.
	Now func() time.Time
}

func (i Info) now() time.Time {
	if i.Now != nil {
		return i.Now().UTC()
	}
	return time.Now().UTC()
}

// At converts seconds since the epoch to a UTC time.
func (i Info) At(seconds float64) time.Time {
	whole, frac := math.Modf(seconds)
	return i.Epoch.Add(time.Duration(whole) * time.Second).
		Add(time.Duration(math.Round(frac * 1e9))).UTC()
}

// Stamp formats t with the configured file-name layout.
func (i Info) Stamp(t time.Time) (string, error) {
	layout := i.TimestampFormat
	if layout == "" {
		layout = "%Y%m%dT%H%M%S"
	}
	return strftime.Format(layout, t.UTC())
}

// ISO formats t as an ISO-8601 attribute value.
func ISO(t time.Time) string {
	s, err := strftime.Format(isoLayout, t.UTC())
	if err != nil {
		return t.UTC().Format(time.RFC3339)
	}
	return s
}

// FileName builds <MISSION>_<TYPE>_<first>_<last>_<created>.nc for records
// spanning first..last (seconds since the epoch).
func (i Info) FileName(productType string, first, last float64) (string, error) {
	parts := []string{strings.ToUpper(i.Mission), productType}
	for _, t := range []time.Time{i.At(first), i.At(last), i.now()} {
		s, err := i.Stamp(t)
		if err != nil {
			return "", fmt.Errorf("file name stamp: %w", err)
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, "_") + ".nc", nil
}
