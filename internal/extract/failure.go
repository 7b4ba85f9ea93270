package extract

import (
	"errors"
	"fmt"

	"github.com/hyperjump/rmeta/internal/models"
)

// Category is the fully-qualified kind of a decode failure.
type Category string

const (
	// CategoryMalformed is used when the bytes do not form a valid document.
	CategoryMalformed Category = "rmeta.extract.MalformedDocument"
	// CategoryEncrypted is used when a credential is missing or wrong.
	CategoryEncrypted Category = "rmeta.extract.EncryptedDocument"
	// CategoryUnsupported is used when no decoder handles the content type.
	CategoryUnsupported Category = "rmeta.extract.UnsupportedFormat"
	// CategoryRuntime is used for unexpected faults inside a decoder.
	CategoryRuntime Category = "rmeta.extract.RuntimeFault"
)

// DecodeFailure is the error decoders return when a unit cannot be decoded.
type DecodeFailure struct {
	Category Category
	Err      error
}

func (f *DecodeFailure) Error() string {
	if f.Err == nil {
		return string(f.Category)
	}
	return string(f.Category) + ": " + f.Err.Error()
}

func (f *DecodeFailure) Unwrap() error {
	return f.Err
}

// Malformed wraps err as a malformed-document failure.
func Malformed(err error) error {
	return &DecodeFailure{Category: CategoryMalformed, Err: err}
}

// Malformedf formats a malformed-document failure.
func Malformedf(format string, args ...any) error {
	return Malformed(fmt.Errorf(format, args...))
}

// Encrypted wraps err as a missing or wrong credential failure.
func Encrypted(err error) error {
	return &DecodeFailure{Category: CategoryEncrypted, Err: err}
}

// Unsupported reports that no decoder accepts contentType.
func Unsupported(contentType string) error {
	return &DecodeFailure{Category: CategoryUnsupported, Err: fmt.Errorf("no decoder for %s", contentType)}
}

// failureFrom converts a decoder error into the record form. Errors that are
// not a DecodeFailure are treated as malformed input.
func failureFrom(err error) *models.Failure {
	var df *DecodeFailure
	if errors.As(err, &df) {
		msg := ""
		if df.Err != nil {
			msg = df.Err.Error()
		}
		return &models.Failure{Category: string(df.Category), Message: msg}
	}
	return &models.Failure{Category: string(CategoryMalformed), Message: err.Error()}
}

// failureFromPanic converts a recovered panic value into the record form.
func failureFromPanic(v any) *models.Failure {
	msg := fmt.Sprint(v)
	if err, ok := v.(error); ok {
		msg = err.Error()
	}
	return &models.Failure{Category: string(CategoryRuntime), Message: msg}
}
