// Package geo validates the geographic points carried by orders.
package geo

import (
	"bytes"
	"encoding/json"
	"errors"
	"reflect"
	"strconv"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"

	"deliveryService/internal/apperr"
	"deliveryService/models"
)

// Point is an unvalidated location as received from a caller. Nil fields are absent values.
type Point struct {
	Latitude  *float64 `json:"latitude" validate:"required,latitude"`
	Longitude *float64 `json:"longitude" validate:"required,longitude"`

	// JSON types seen where a number or an object was expected.
	shape, latType, lngType string
}

// UnmarshalJSON accepts any JSON value. Values of the wrong type are kept on the
// point and reported by Validate, so decoding a request never fails on them.
func (p *Point) UnmarshalJSON(data []byte) error {
	*p = Point{}
	if kind := jsonKind(data); kind != "object" {
		p.shape = kind
		return nil
	}
	var raw struct {
		Latitude  json.RawMessage `json:"latitude"`
		Longitude json.RawMessage `json:"longitude"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.Latitude, p.latType = number(raw.Latitude)
	p.Longitude, p.lngType = number(raw.Longitude)
	return nil
}

// number decodes a JSON number. Absent and null give (nil, ""); anything else
// gives (nil, type) where type names what was found instead.
func number(raw json.RawMessage) (*float64, string) {
	if kind := jsonKind(raw); kind == "" || kind == "null" {
		return nil, ""
	} else if kind != "number" {
		return nil, kind
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		var ute *json.UnmarshalTypeError
		if errors.As(err, &ute) {
			return nil, ute.Value
		}
		return nil, "number"
	}
	return &f, ""
}

func jsonKind(data []byte) string {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return ""
	}
	switch data[0] {
	case '{':
		return "object"
	case '[':
		return "array"
	case '"':
		return "string"
	case 't', 'f':
		return "bool"
	case 'n':
		return "null"
	default:
		return "number"
	}
}

// NewPoint is a convenience constructor for a fully populated point.
func NewPoint(lat, lng float64) *Point {
	return &Point{Latitude: &lat, Longitude: &lng}
}

// Validator checks points against the latitude/longitude ranges.
type Validator struct {
	v *validatorv10.Validate
}

// NewValidator returns a Validator whose field errors use JSON field names.
func NewValidator() *Validator {
	v := validatorv10.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{v: v}
}

// Validate checks p and returns the corresponding Location. Violations are
// InvalidArgument errors naming the offending field (prefixed with field) and value.
// Values are never clamped.
func (val *Validator) Validate(field string, p *Point) (models.Location, error) {
	if p == nil {
		return models.Location{}, apperr.Invalid(field, "%s: value is absent, expected an object with numeric latitude and longitude", field)
	}
	if p.shape != "" {
		return models.Location{}, apperr.Invalid(field, "%s: value of type %s is not an object", field, p.shape)
	}
	for _, bad := range []struct{ name, kind string }{{"latitude", p.latType}, {"longitude", p.lngType}} {
		if bad.kind != "" {
			name := field + "." + bad.name
			return models.Location{}, apperr.Invalid(name, "%s: value of type %s is not a number", name, bad.kind)
		}
	}
	if err := val.v.Struct(p); err != nil {
		var ves validatorv10.ValidationErrors
		if !errors.As(err, &ves) || len(ves) == 0 {
			return models.Location{}, apperr.Invalid(field, "%s: %v", field, err)
		}
		return models.Location{}, describe(field, p, ves[0])
	}
	return models.Location{Latitude: *p.Latitude, Longitude: *p.Longitude}, nil
}

func describe(field string, p *Point, fe validatorv10.FieldError) error {
	name := field + "." + fe.Field()
	if fe.Tag() == "required" {
		return apperr.Invalid(name, "%s: value is absent, expected a number", name)
	}
	var value float64
	bound := "90"
	if fe.Field() == "longitude" {
		value, bound = *p.Longitude, "180"
	} else {
		value = *p.Latitude
	}
	return apperr.Invalid(name, "%s: value %s is out of range [-%s, %s]", name, strconv.FormatFloat(value, 'f', -1, 64), bound, bound)
}
