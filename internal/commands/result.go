package commands

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Result statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Result is the outcome of one invocation.
type Result struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// OK wraps data in a successful result.
func OK(data any) Result {
	raw, err := json.Marshal(data)
	if err != nil {
		return Failure(fmt.Errorf("encode result: %w", err))
	}
	return Result{Status: StatusOK, Data: raw}
}

// Failure wraps err in an error result.
func Failure(err error) Result {
	if err == nil {
		err = errors.New("unknown error")
	}
	return Result{Status: StatusError, Error: err.Error()}
}

// Err returns the carried error, or nil for successful results.
func (r Result) Err() error {
	if r.Status == StatusOK {
		return nil
	}
	if r.Error == "" {
		return errors.New("command failed")
	}
	return errors.New(r.Error)
}

// Decode unmarshals the result data into out.
func (r Result) Decode(out any) error {
	if err := r.Err(); err != nil {
		return err
	}
	if len(r.Data) == 0 || string(r.Data) == "null" {
		return nil
	}
	return json.Unmarshal(r.Data, out)
}
