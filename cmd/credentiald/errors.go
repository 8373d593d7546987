package main

import (
	"errors"

	"github.com/samber/oops"

	"github.com/viralforge/mesh/services/core-platform/M04-credential-lifecycle-service/internal/app/bootstrap"
)

// wrapBootstrap tags a startup failure with the code an operator acts on.
func wrapBootstrap(command string, err error) error {
	code := "BOOTSTRAP_FAILED"
	switch {
	case errors.Is(err, bootstrap.ErrInvalidConfig):
		code = "CONFIG_INVALID"
	case errors.Is(err, bootstrap.ErrStoreUnavailable):
		code = "DB_CONNECT_FAILED"
	}
	return oops.Code(code).With("command", command).Wrap(err)
}
