package anticheat

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
		_ = validate.RegisterValidation("snowflake", func(fl validator.FieldLevel) bool {
			return IsSnowflake(fl.Field().String())
		})
	})
	return validate
}

// IsSnowflake reports whether s looks like a Discord snowflake ID:
// 17 to 20 decimal digits.
func IsSnowflake(s string) bool {
	if len(s) < 17 || len(s) > 20 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// validateStruct runs struct-tag validation and maps failures to ErrInvalidInput.
func validateStruct(s any) error {
	err := getValidator().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "snowflake":
		return fe.Field() + " must be a Discord snowflake ID"
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}

type userRef struct {
	UserID string `json:"user_id" validate:"required,snowflake"`
}

type memberRef struct {
	UserID  string `json:"user_id" validate:"required,snowflake"`
	GuildID string `json:"guild_id" validate:"required,snowflake"`
}

func validateUser(userID string) error {
	return validateStruct(userRef{UserID: userID})
}

func validateMember(userID, guildID string) error {
	return validateStruct(memberRef{UserID: userID, GuildID: guildID})
}

// Metadata bounds. Values may nest objects and arrays.
const (
	MaxMetadataKeys  = 32
	MaxMetadataDepth = 4
	MaxMetadataBytes = 4096
)

// validateMetadata accepts JSON-shaped metadata within the key, depth and
// encoded size bounds.
func validateMetadata(md map[string]any) error {
	if len(md) > MaxMetadataKeys {
		return fmt.Errorf("%w: metadata has more than %d keys", ErrInvalidInput, MaxMetadataKeys)
	}
	for k, v := range md {
		if err := checkMetadataValue(v, 1); err != nil {
			return fmt.Errorf("%w: metadata.%s %s", ErrInvalidInput, k, err)
		}
	}
	b, err := json.Marshal(md)
	if err != nil {
		return fmt.Errorf("%w: metadata is not encodable: %v", ErrInvalidInput, err)
	}
	if len(b) > MaxMetadataBytes {
		return fmt.Errorf("%w: metadata exceeds %d bytes encoded", ErrInvalidInput, MaxMetadataBytes)
	}
	return nil
}

func checkMetadataValue(v any, depth int) error {
	switch t := v.(type) {
	case nil, string, bool, float64, float32, int, int32, int64:
		return nil
	case map[string]any:
		if depth >= MaxMetadataDepth {
			return fmt.Errorf("nests deeper than %d levels", MaxMetadataDepth)
		}
		for _, e := range t {
			if err := checkMetadataValue(e, depth+1); err != nil {
				return err
			}
		}
		return nil
	case []any:
		if depth >= MaxMetadataDepth {
			return fmt.Errorf("nests deeper than %d levels", MaxMetadataDepth)
		}
		for _, e := range t {
			if err := checkMetadataValue(e, depth+1); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("has unsupported type %T", v)
	}
}
