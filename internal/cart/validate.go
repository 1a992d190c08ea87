package cart

import (
	"errors"
	"net/http"
	"regexp"
	"slices"
	"strings"

	validator "github.com/go-playground/validator/v10"

	"github.com/noah-isme/backend-jersey/internal/common"
)

// AddInput is the payload accepted when adding a jersey to a cart.
type AddInput struct {
	ProductID    int    `json:"productId" validate:"required,gt=0"`
	Qty          int    `json:"qty" validate:"min=1,max=99"`
	Size         string `json:"size" validate:"omitempty,jersey_size"`
	Version      string `json:"version" validate:"omitempty,oneof=aficionado jugador"`
	CustomName   string `json:"customName" validate:"omitempty,max=15,jersey_name"`
	CustomNumber *int   `json:"customNumber" validate:"omitempty,min=0,max=99"`
	Patch        string `json:"patch" validate:"omitempty,max=32"`
}

func (in *AddInput) normalize() {
	in.Size = strings.ToUpper(strings.TrimSpace(in.Size))
	in.Version = strings.ToLower(strings.TrimSpace(in.Version))
	in.CustomName = strings.TrimSpace(in.CustomName)
	in.Patch = strings.ToLower(strings.TrimSpace(in.Patch))
}

var customNamePattern = regexp.MustCompile(`^[\p{L} .'\-]+$`)

var fieldMessages = map[string]string{
	"ProductID":    "productId is required",
	"Qty":          "qty must be between 1 and 99",
	"Size":         "size must be one of S, M, L, XL, XXL, 3XL or 16-28",
	"Version":      "version must be aficionado or jugador",
	"CustomName":   "customName accepts up to 15 letters, spaces, dots, apostrophes or hyphens",
	"CustomNumber": "customNumber must be between 0 and 99",
	"Patch":        "patch is too long",
}

var fieldKeys = map[string]string{
	"ProductID":    "productId",
	"Qty":          "qty",
	"Size":         "size",
	"Version":      "version",
	"CustomName":   "customName",
	"CustomNumber": "customNumber",
	"Patch":        "patch",
}

// NewValidator returns a validator with the jersey rules registered.
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("jersey_size", func(fl validator.FieldLevel) bool {
		size := fl.Field().String()
		return slices.Contains(AdultSizes, size) || slices.Contains(KidsSizes, size)
	})
	_ = v.RegisterValidation("jersey_name", func(fl validator.FieldLevel) bool {
		return customNamePattern.MatchString(fl.Field().String())
	})
	return v
}

func invalidInput(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return common.Unprocessable("INVALID_INPUT", "invalid cart item", err, nil)
	}
	details := make(map[string]string, len(verrs))
	message := ""
	for _, fe := range verrs {
		key := fieldKeys[fe.StructField()]
		if key == "" {
			key = fe.Field()
		}
		msg := fieldMessages[fe.StructField()]
		if msg == "" {
			msg = fe.Error()
		}
		details[key] = msg
		if message == "" {
			message = msg
		}
	}
	return &common.AppError{
		Code:       "INVALID_INPUT",
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
		Err:        errors.Join(ErrInvalidInput, err),
		Details:    details,
	}
}
