package validate

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

type ErrField struct {
	Field string `json:"field"`
	Msg   string `json:"msg"`
}

type Errs []ErrField

func (e Errs) Error() string { // error interface
	var b strings.Builder
	for i, ef := range e {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(ef.Field + ": " + ef.Msg)
	}
	return b.String()
}

// Collect drops nil results and returns an Errs, or nil when every check passed.
func Collect(checks ...*ErrField) error {
	var out Errs
	for _, c := range checks {
		if c != nil {
			out = append(out, *c)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// As extracts field errors from err.
func As(err error) (Errs, bool) {
	var errs Errs
	if errors.As(err, &errs) {
		return errs, true
	}
	return nil, false
}

const (
	UsernameMin   = 2
	UsernameMax   = 20
	PasswordMin   = 8
	SignInPassMin = 6
	ContentMin    = 10
	ContentMax    = 300
)

var (
	usernameRe = regexp.MustCompile(`^[a-zA-Z0-9]+$`)
	emailRe    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
)

// Helpers
func Required(field, value string) *ErrField {
	if strings.TrimSpace(value) == "" {
		return &ErrField{Field: field, Msg: "required"}
	}
	return nil
}

// RuneLength checks that value has between min and max characters, inclusive.
func RuneLength(field, value string, min, max int) *ErrField {
	n := utf8.RuneCountInString(value)
	if n < min {
		return &ErrField{Field: field, Msg: "must be at least " + strconv.Itoa(min) + " characters"}
	}
	if n > max {
		return &ErrField{Field: field, Msg: "must be at most " + strconv.Itoa(max) + " characters"}
	}
	return nil
}

func Username(field, value string) *ErrField {
	if ef := RuneLength(field, value, UsernameMin, UsernameMax); ef != nil {
		return ef
	}
	if !usernameRe.MatchString(value) {
		return &ErrField{Field: field, Msg: "must not contain special characters"}
	}
	return nil
}

func Email(field, value string) *ErrField {
	if !emailRe.MatchString(value) {
		return &ErrField{Field: field, Msg: "invalid email address"}
	}
	return nil
}

func Password(field, value string, min int) *ErrField {
	if utf8.RuneCountInString(value) < min {
		return &ErrField{Field: field, Msg: "must be at least " + strconv.Itoa(min) + " characters"}
	}
	return nil
}

// Content applies the anonymous message bounds.
func Content(field, value string) *ErrField {
	return RuneLength(field, value, ContentMin, ContentMax)
}
