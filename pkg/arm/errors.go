package arm

import "github.com/pkg/errors"

var (
	// ErrDomain is returned for requests outside the physical or geometric envelope.
	// These are always recovered locally: the request is rejected and reported.
	ErrDomain = errors.New("outside arm envelope")

	// ErrSingularInput marks a kinematics input at a non-invertible configuration.
	// It wraps ErrDomain.
	ErrSingularInput = errors.Wrap(ErrDomain, "singular kinematic input")

	// ErrConfiguration is returned for malformed envelope constants. It is fatal at startup.
	ErrConfiguration = errors.New("invalid arm configuration")
)

func domainErrorf(format string, args ...any) error {
	return errors.Wrapf(ErrDomain, format, args...)
}

func configErrorf(format string, args ...any) error {
	return errors.Wrapf(ErrConfiguration, format, args...)
}

func singularErrorf(format string, args ...any) error {
	return errors.Wrapf(ErrSingularInput, format, args...)
}
