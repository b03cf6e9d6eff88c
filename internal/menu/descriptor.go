// internal/menu/descriptor.go
package menu

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// ErrInvalidValue is returned when a value does not satisfy a descriptor
var ErrInvalidValue = errors.New("invalid value")

// ValueType is the firmware type of a parameter
type ValueType string

const (
	TypeString  ValueType = "string"
	TypeEnum    ValueType = "enum"
	TypeBoolean ValueType = "boolean"
	TypeInteger ValueType = "integer"
	TypeFloat   ValueType = "float"
)

// ConstantDescriptorText is used for parameters that have no keystroke
const ConstantDescriptorText = "A, string 128"

// Descriptor holds the parsed input instructions of a parameter screen,
// e.g. "A, integer, Hz, between 1 and 1000, or \"auto\" [0Hz]".
type Descriptor struct {
	Mode         string    `json:"mode,omitempty"`
	Type         ValueType `json:"type"`
	MaxChars     int       `json:"max_chars,omitempty"`
	Unit         string    `json:"unit,omitempty"`
	Min          string    `json:"min,omitempty"`
	Max          string    `json:"max,omitempty"`
	MinExclusive bool      `json:"min_exclusive,omitempty"`
	MaxExclusive bool      `json:"max_exclusive,omitempty"`
	SpecialLabel string    `json:"special_label,omitempty"`
	SpecialValue string    `json:"special_value,omitempty"`
}

// ParseDescriptor parses the text found between "new value (" and "):".
// An empty text describes a plain string.
func ParseDescriptor(text string) (*Descriptor, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return &Descriptor{Type: TypeString}, nil
	}

	fields := strings.Split(text, ",")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	d := &Descriptor{}
	if !isTypeField(fields[0]) {
		d.Mode = fields[0]
		fields = fields[1:]
	}
	if len(fields) == 0 || fields[0] == "" {
		return nil, fmt.Errorf("descriptor %q has no type", text)
	}

	words := strings.Fields(fields[0])
	fields = fields[1:]
	switch ValueType(words[0]) {
	case TypeString:
		d.Type = TypeString
		if len(words) > 1 {
			n, err := strconv.Atoi(words[1])
			if err != nil {
				return nil, fmt.Errorf("descriptor %q: invalid string length: %w", text, err)
			}
			d.MaxChars = n
		}
	case TypeEnum, TypeBoolean:
		d.Type = ValueType(words[0])
	case TypeInteger, TypeFloat:
		d.Type = ValueType(words[0])
		if len(words) > 1 {
			d.Unit = strings.Join(words[1:], " ")
		} else if len(fields) > 0 && !isClause(fields[0]) {
			d.Unit = fields[0]
			fields = fields[1:]
		}
	default:
		return nil, fmt.Errorf("descriptor %q: unknown type %q", text, words[0])
	}

	for _, f := range fields {
		if err := d.parseClause(f); err != nil {
			return nil, fmt.Errorf("descriptor %q: %w", text, err)
		}
	}
	return d, nil
}

func (d *Descriptor) parseClause(f string) error {
	words := strings.Fields(f)
	switch {
	case f == "":
		return nil
	case strings.HasPrefix(f, "between"):
		if len(words) < 4 || words[2] != "and" {
			return fmt.Errorf("malformed range %q", f)
		}
		d.Min, d.Max = words[1], words[3]
	case strings.HasPrefix(f, "greater than"):
		if len(words) < 3 {
			return fmt.Errorf("malformed bound %q", f)
		}
		d.Min = words[len(words)-1]
		d.MinExclusive = !strings.Contains(f, "or equal to")
	case strings.HasPrefix(f, "less than"):
		if len(words) < 3 {
			return fmt.Errorf("malformed bound %q", f)
		}
		d.Max = words[len(words)-1]
		d.MaxExclusive = !strings.Contains(f, "or equal to")
	case strings.HasPrefix(f, "or "):
		parts := strings.SplitN(f, "\"", 3)
		if len(parts) < 3 {
			return fmt.Errorf("malformed special value %q", f)
		}
		d.SpecialLabel = parts[1]
		rest := parts[2]
		open := strings.Index(rest, "[")
		end := strings.LastIndex(rest, "]")
		if open >= 0 && end > open {
			v := strings.TrimSpace(rest[open+1 : end])
			if d.Unit != "" {
				v = strings.TrimSuffix(v, d.Unit)
			}
			d.SpecialValue = v
		}
	default:
		return fmt.Errorf("unknown clause %q", f)
	}
	return nil
}

// String re-derives the descriptor text
func (d *Descriptor) String() string {
	var parts []string
	if d.Mode != "" {
		parts = append(parts, d.Mode)
	}
	switch {
	case d.Type == TypeString && d.MaxChars > 0:
		parts = append(parts, fmt.Sprintf("string %d", d.MaxChars))
	default:
		parts = append(parts, string(d.Type))
	}
	if d.IsNumeric() && d.Unit != "" {
		parts = append(parts, d.Unit)
	}
	if d.Min != "" && d.Max != "" && !d.MinExclusive && !d.MaxExclusive {
		parts = append(parts, fmt.Sprintf("between %s and %s", d.Min, d.Max))
	} else {
		if d.Min != "" {
			parts = append(parts, "greater than "+orEqual(d.MinExclusive)+d.Min)
		}
		if d.Max != "" {
			parts = append(parts, "less than "+orEqual(d.MaxExclusive)+d.Max)
		}
	}
	if d.SpecialLabel != "" {
		parts = append(parts, fmt.Sprintf("or \"%s\" [%s%s]", d.SpecialLabel, d.SpecialValue, d.Unit))
	}
	return strings.Join(parts, ", ")
}

func orEqual(exclusive bool) string {
	if exclusive {
		return ""
	}
	return "or equal to "
}

// IsNumeric reports whether values carry a number and optional unit
func (d *Descriptor) IsNumeric() bool {
	return d.Type == TypeInteger || d.Type == TypeFloat
}

// Check validates a value entered by a user against the descriptor
func (d *Descriptor) Check(value string) error {
	value = strings.TrimSpace(value)
	switch d.Type {
	case TypeString:
		if d.MaxChars > 0 && utf8.RuneCountInString(value) > d.MaxChars-1 {
			return fmt.Errorf("%w: %q exceeds %d characters", ErrInvalidValue, value, d.MaxChars-1)
		}
		return nil
	case TypeBoolean:
		if _, ok := ParseBool(value); !ok {
			return fmt.Errorf("%w: %q is not a boolean", ErrInvalidValue, value)
		}
		return nil
	case TypeInteger, TypeFloat:
		return d.checkNumber(value)
	default:
		return nil
	}
}

func (d *Descriptor) checkNumber(value string) error {
	if d.SpecialLabel != "" && strings.EqualFold(value, d.SpecialLabel) {
		return nil
	}
	number := strings.TrimSpace(strings.TrimSuffix(value, d.Unit))
	num, err := decimal.NewFromString(number)
	if err != nil {
		return fmt.Errorf("%w: %q is not a number", ErrInvalidValue, value)
	}
	if d.Type == TypeInteger && !num.IsInteger() {
		return fmt.Errorf("%w: %q is not an integer", ErrInvalidValue, value)
	}
	if d.SpecialValue != "" {
		if special, err := decimal.NewFromString(d.SpecialValue); err == nil && num.Equal(special) {
			return nil
		}
	}
	if d.Min != "" {
		if min, err := decimal.NewFromString(d.Min); err == nil {
			if num.LessThan(min) || (d.MinExclusive && num.Equal(min)) {
				return fmt.Errorf("%w: %s is below the minimum %s", ErrInvalidValue, num, min)
			}
		}
	}
	if d.Max != "" {
		if max, err := decimal.NewFromString(d.Max); err == nil {
			if num.GreaterThan(max) || (d.MaxExclusive && num.Equal(max)) {
				return fmt.Errorf("%w: %s is above the maximum %s", ErrInvalidValue, num, max)
			}
		}
	}
	return nil
}

// Equal reports whether two values denote the same setting. A nil
// descriptor compares the trimmed text.
func (d *Descriptor) Equal(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == b {
		return true
	}
	if d == nil {
		return false
	}
	switch {
	case d.Type == TypeBoolean:
		x, okx := ParseBool(a)
		y, oky := ParseBool(b)
		return okx && oky && x == y
	case d.IsNumeric():
		if d.SpecialLabel != "" && (strings.EqualFold(a, d.SpecialLabel) || strings.EqualFold(b, d.SpecialLabel)) {
			return strings.EqualFold(a, b)
		}
		x, errx := decimal.NewFromString(strings.TrimSpace(strings.TrimSuffix(a, d.Unit)))
		y, erry := decimal.NewFromString(strings.TrimSpace(strings.TrimSuffix(b, d.Unit)))
		return errx == nil && erry == nil && x.Equal(y)
	}
	return false
}

// ParseBool maps the firmware's boolean spellings
func ParseBool(value string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "yes", "on", "true", "ok", "1":
		return true, true
	case "no", "off", "false", "0":
		return false, true
	}
	return false, false
}

func isTypeField(f string) bool {
	words := strings.Fields(f)
	if len(words) == 0 {
		return false
	}
	switch ValueType(words[0]) {
	case TypeString, TypeEnum, TypeBoolean, TypeInteger, TypeFloat:
		return true
	}
	return false
}

func isClause(f string) bool {
	for _, p := range []string{"between", "greater than", "less than", "or "} {
		if strings.HasPrefix(f, p) {
			return true
		}
	}
	return false
}
