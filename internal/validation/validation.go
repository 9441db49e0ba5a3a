package validation

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gitlab.com/dirk.krummacker/contacts-service/internal/model"
)

// StoreContactRequest is the submitted data for creating a contact.
type StoreContactRequest struct {
	Name    string  `json:"name"    form:"name"    validate:"required,max=255"`
	Email   string  `json:"email"   form:"email"   validate:"required,email,max=255"`
	Phone   *string `json:"phone"   form:"phone"   validate:"omitnil,max=255"`
	Company *string `json:"company" form:"company" validate:"omitnil,max=255"`
	Address *string `json:"address" form:"address"`
	Notes   *string `json:"notes"   form:"notes"`
}

// UpdateContactRequest is the submitted data for updating a contact. Every field is optional, but
// a field that is present must satisfy the same rules as on creation.
type UpdateContactRequest struct {
	Name    *string `json:"name"    form:"name"    validate:"omitnil,required,max=255"`
	Email   *string `json:"email"   form:"email"   validate:"omitnil,required,email,max=255"`
	Phone   *string `json:"phone"   form:"phone"   validate:"omitnil,max=255"`
	Company *string `json:"company" form:"company" validate:"omitnil,max=255"`
	Address *string `json:"address" form:"address"`
	Notes   *string `json:"notes"   form:"notes"`
}

// Error lists every field that failed validation together with the reasons.
type Error struct {
	Fields map[string][]string
}

func (e *Error) Error() string {
	names := e.names()
	if len(names) == 0 {
		return "The given data was invalid."
	}
	message := e.Fields[names[0]][0]
	if count := e.count() - 1; count == 1 {
		message += " (and 1 more error)"
	} else if count > 1 {
		message += fmt.Sprintf(" (and %d more errors)", count)
	}
	return message
}

// First returns the first message of every field.
func (e *Error) First() map[string]string {
	first := make(map[string]string, len(e.Fields))
	for field, messages := range e.Fields {
		if len(messages) > 0 {
			first[field] = messages[0]
		}
	}
	return first
}

func (e *Error) names() []string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (e *Error) count() int {
	count := 0
	for _, messages := range e.Fields {
		count += len(messages)
	}
	return count
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields under the names the client submitted them with.
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate trims the submitted values and checks them against the rules for creating a contact.
// It returns an *Error naming every offending field.
func (r *StoreContactRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
	trim(r.Phone, r.Company, r.Address, r.Notes)
	return check(r)
}

// Fields returns the values to be stored.
func (r *StoreContactRequest) Fields() model.Fields {
	return model.Fields{
		Name:    &r.Name,
		Email:   &r.Email,
		Phone:   r.Phone,
		Company: r.Company,
		Address: r.Address,
		Notes:   r.Notes,
	}
}

// Validate trims the submitted values and checks the present ones against the rules for creating
// a contact. It returns an *Error naming every offending field.
func (r *UpdateContactRequest) Validate() error {
	trim(r.Name, r.Email, r.Phone, r.Company, r.Address, r.Notes)
	return check(r)
}

// Fields returns the values to be stored. Fields that were not submitted stay nil.
func (r *UpdateContactRequest) Fields() model.Fields {
	return model.Fields{
		Name:    r.Name,
		Email:   r.Email,
		Phone:   r.Phone,
		Company: r.Company,
		Address: r.Address,
		Notes:   r.Notes,
	}
}

func trim(values ...*string) {
	for _, value := range values {
		if value != nil {
			*value = strings.TrimSpace(*value)
		}
	}
}

func check(request interface{}) error {
	err := validate.Struct(request)
	if err == nil {
		return nil
	}
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return err
	}
	result := &Error{Fields: make(map[string][]string)}
	for _, fieldErr := range fieldErrors {
		result.Fields[fieldErr.Field()] = append(result.Fields[fieldErr.Field()], message(fieldErr))
	}
	return result
}

// message renders a failed rule the way it is shown next to the form field.
func message(fieldErr validator.FieldError) string {
	field := strings.ReplaceAll(fieldErr.Field(), "_", " ")
	switch fieldErr.Tag() {
	case "required":
		return fmt.Sprintf("The %s field is required.", field)
	case "email":
		return fmt.Sprintf("The %s field must be a valid email address.", field)
	case "max":
		return fmt.Sprintf("The %s field must not be greater than %s characters.", field, fieldErr.Param())
	default:
		return fmt.Sprintf("The %s field is invalid.", field)
	}
}
