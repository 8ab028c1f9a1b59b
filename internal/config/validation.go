package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError represents a single configuration validation failure.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s (value: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors collects multiple ValidationError values.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	var messages []string
	for _, err := range e {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("multiple validation errors: %s", strings.Join(messages, "; "))
}

// Validate checks the config for values that would make the scheduler
// impossible to run: malformed URLs, non-positive sizes, and so on.
func (c *Config) Validate() error {
	var errs ValidationErrors

	if c.API.Port <= 0 || c.API.Port > 65535 {
		errs = append(errs, ValidationError{Field: "api.port", Value: c.API.Port, Message: "port must be between 1 and 65535"})
	}

	if c.Queue.Maxsize <= 0 {
		errs = append(errs, ValidationError{Field: "queue.maxsize", Value: c.Queue.Maxsize, Message: "maxsize must be positive"})
	}
	if c.Queue.PopulateInterval <= 0 {
		errs = append(errs, ValidationError{Field: "queue.populate_interval", Value: c.Queue.PopulateInterval, Message: "must be positive"})
	}
	if c.Queue.PopulateGracePeriod < 0 {
		errs = append(errs, ValidationError{Field: "queue.populate_grace_period", Value: c.Queue.PopulateGracePeriod, Message: "must not be negative"})
	}
	if c.Queue.RandomFillN < 0 {
		errs = append(errs, ValidationError{Field: "queue.random_fill_n", Value: c.Queue.RandomFillN, Message: "must not be negative"})
	}

	if err := validateURL("dispatch.broker_url", c.Dispatch.BrokerURL); err != nil {
		errs = append(errs, err.(ValidationError))
	}
	if err := validateURL("dispatch.octopoes_dsn", c.Dispatch.OctopoesDSN); err != nil {
		errs = append(errs, err.(ValidationError))
	}

	errs = append(errs, validateService("catalogue", c.Catalogue)...)
	errs = append(errs, validateService("octopoes", c.Inventory)...)
	errs = append(errs, validateService("bytes", c.RawData)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateService(name string, svc ServiceConfig) ValidationErrors {
	var errs ValidationErrors
	if err := validateURL(name+".host", svc.Host); err != nil {
		errs = append(errs, err.(ValidationError))
	}
	if svc.Timeout <= 0 {
		errs = append(errs, ValidationError{Field: name + ".timeout", Value: svc.Timeout, Message: "must be positive"})
	}
	return errs
}

func validateURL(field, raw string) error {
	if raw == "" {
		return ValidationError{Field: field, Value: raw, Message: "must not be empty"}
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ValidationError{Field: field, Value: raw, Message: "must be an absolute URL"}
	}
	return nil
}
