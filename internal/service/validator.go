package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"github.com/jptrhost/pelican-dns/internal/models"
)

// rawWebhook mirrors the Pelican payload loosely so that type problems can be
// reported per field instead of as a single decode failure.
type rawWebhook struct {
	ID           json.RawMessage `json:"id"`
	UUID         string          `json:"uuid"`
	UUIDShort    string          `json:"uuid_short"`
	Name         *string         `json:"name"`
	NodeID       json.RawMessage `json:"node_id"`
	AllocationID json.RawMessage `json:"allocation_id"`
	Allocation   *rawAllocation  `json:"allocation"`
	Event        string          `json:"event"`
}

type rawAllocation struct {
	ID       json.RawMessage `json:"id"`
	NodeID   json.RawMessage `json:"node_id"`
	IP       *string         `json:"ip"`
	Port     json.RawMessage `json:"port"`
	ServerID json.RawMessage `json:"server_id"`
	Primary  *bool           `json:"primary"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	return v
}

// ParseWebhook decodes and validates a webhook body. It has no side effects.
// A missing allocation is not an error.
func ParseWebhook(body []byte) (*models.WebhookEvent, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, &ValidationError{Field: "body", Reason: "must be a JSON object"}
	}

	var raw rawWebhook
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return nil, &ValidationError{Field: typeErr.Field, Reason: "has the wrong type (got " + typeErr.Value + ")"}
		}
		return nil, &ValidationError{Field: "body", Reason: "is not valid JSON: " + err.Error()}
	}

	event := &models.WebhookEvent{
		UUID:      raw.UUID,
		UUIDShort: raw.UUIDShort,
		Event:     raw.Event,
	}
	if raw.Name != nil {
		event.Name = *raw.Name
	}

	var err error
	if event.ID, err = parseInteger("id", raw.ID); err != nil {
		return nil, err
	}
	if event.NodeID, err = parseInteger("node_id", raw.NodeID); err != nil {
		return nil, err
	}
	if event.AllocationID, err = parseInteger("allocation_id", raw.AllocationID); err != nil {
		return nil, err
	}

	if raw.Allocation != nil {
		if event.Allocation, err = convertAllocation(raw.Allocation); err != nil {
			return nil, err
		}
	}

	if err := validate.Struct(event); err != nil {
		return nil, toValidationError(err)
	}
	return event, nil
}

func convertAllocation(raw *rawAllocation) (*models.Allocation, error) {
	alloc := &models.Allocation{}
	if raw.IP != nil {
		alloc.IP = strings.TrimSpace(*raw.IP)
	}
	if raw.Primary != nil {
		alloc.Primary = *raw.Primary
	}

	var err error
	if alloc.ID, err = parseInteger("allocation.id", raw.ID); err != nil {
		return nil, err
	}
	if alloc.NodeID, err = parseInteger("allocation.node_id", raw.NodeID); err != nil {
		return nil, err
	}
	if alloc.ServerID, err = parseInteger("allocation.server_id", raw.ServerID); err != nil {
		return nil, err
	}

	port, err := parseInteger("allocation.port", raw.Port)
	if err != nil {
		return nil, err
	}
	if port < 1 || port > 65535 {
		return nil, &ValidationError{Field: "allocation.port", Reason: "must be between 1 and 65535"}
	}
	alloc.Port = int(port)
	return alloc, nil
}

// parseInteger accepts a JSON integer or a string holding one. Absent and
// null values yield 0.
func parseInteger(field string, raw json.RawMessage) (int64, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return 0, nil
	}
	if strings.HasPrefix(s, `"`) {
		unquoted, err := strconv.Unquote(s)
		if err != nil {
			return 0, &ValidationError{Field: field, Reason: "must be an integer"}
		}
		s = strings.TrimSpace(unquoted)
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, &ValidationError{Field: field, Reason: "must be an integer"}
	}
	return n, nil
}

func toValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &ValidationError{Field: "body", Reason: err.Error()}
	}

	fe := verrs[0]
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}

	reason := "is invalid"
	switch fe.Tag() {
	case "required":
		reason = "is required"
	case "notblank":
		reason = "must be a non-empty string"
	case "min", "max":
		reason = "must be between 1 and 65535"
	case "ip|hostname_rfc1123":
		reason = "must be an IP address or hostname"
	}
	return &ValidationError{Field: field, Reason: reason}
}
