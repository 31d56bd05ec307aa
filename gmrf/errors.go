package gmrf

import "github.com/pkg/errors"

var (
	// ErrInvalidParameter is returned for hyperparameters or designs the model cannot represent.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrNumericalInstability is returned when a precision matrix fails to factor.
	ErrNumericalInstability = errors.New("numerical instability: matrix is not positive definite")
)

func newInvalidParameterError(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidParameter, format, args...)
}
