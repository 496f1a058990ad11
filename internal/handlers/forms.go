package handlers

import (
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/cafe-inventory/server/internal/services"
	"github.com/cafe-inventory/server/types"
)

const (
	formFieldName         = "name"
	formFieldDesc         = "description"
	formFieldCategory     = "category"
	formFieldUnitPrice    = "unit_price"
	formFieldProductID    = "product_id"
	formFieldAction       = "action"
	formFieldChange       = "change"
	formFieldNotes        = "notes"
	formFieldUsername     = "username"
	formFieldPassword     = "password"
	formFieldRole         = "role"
	maxFormBytes          = 64 << 10
	defaultRegistrantRole = types.RoleMember
)

// formValues parses the urlencoded body and returns the trimmed values of
// fields, for re-rendering the form on error.
func formValues(w http.ResponseWriter, r *http.Request, fields ...string) (map[string]string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		return nil, &services.ValidationError{Message: "invalid form submission"}
	}
	values := make(map[string]string, len(fields))
	for _, field := range fields {
		values[field] = strings.TrimSpace(r.PostFormValue(field))
	}
	return values, nil
}

func parseProductForm(w http.ResponseWriter, r *http.Request) (types.Product, map[string]string, error) {
	values, err := formValues(w, r, formFieldName, formFieldDesc, formFieldCategory, formFieldUnitPrice)
	if err != nil {
		return types.Product{}, nil, err
	}

	if values[formFieldName] == "" {
		return types.Product{}, values, &services.ValidationError{Field: formFieldName, Message: "is required"}
	}
	price, err := strconv.ParseInt(values[formFieldUnitPrice], 10, 64)
	if err != nil {
		return types.Product{}, values, &services.ValidationError{Field: formFieldUnitPrice, Message: "must be a whole number"}
	}
	if price < 0 {
		return types.Product{}, values, &services.ValidationError{Field: formFieldUnitPrice, Message: "must not be negative"}
	}

	return types.Product{
		Name:        values[formFieldName],
		Description: values[formFieldDesc],
		Category:    values[formFieldCategory],
		UnitPrice:   price,
	}, values, nil
}

// logForm is the shared shape of the transaction and history edit forms.
type logForm struct {
	ProductID int
	Action    types.Action
	Change    int
	Notes     string
}

func parseLogForm(w http.ResponseWriter, r *http.Request) (logForm, map[string]string, error) {
	values, err := formValues(w, r, formFieldProductID, formFieldAction, formFieldChange, formFieldNotes)
	if err != nil {
		return logForm{}, nil, err
	}

	productID, err := strconv.Atoi(values[formFieldProductID])
	if err != nil || productID < 1 {
		return logForm{}, values, &services.ValidationError{Field: formFieldProductID, Message: "select a product"}
	}
	action, ok := types.ParseAction(values[formFieldAction])
	if !ok {
		return logForm{}, values, &services.ValidationError{Field: formFieldAction, Message: "must be receive (入庫) or issue (出庫)"}
	}
	values[formFieldAction] = string(action)
	change, err := strconv.Atoi(values[formFieldChange])
	if err != nil {
		return logForm{}, values, &services.ValidationError{Field: formFieldChange, Message: "must be a whole number"}
	}
	if change < 0 {
		return logForm{}, values, &services.ValidationError{Field: formFieldChange, Message: "must not be negative"}
	}
	if change > math.MaxInt32 {
		return logForm{}, values, &services.ValidationError{Field: formFieldChange, Message: "must be at most 2147483647"}
	}

	return logForm{
		ProductID: productID,
		Action:    action,
		Change:    change,
		Notes:     values[formFieldNotes],
	}, values, nil
}

type credentialsForm struct {
	Username string
	Password string
	Role     types.Role
}

// parseCredentials does not trim the password.
func parseCredentials(w http.ResponseWriter, r *http.Request) (credentialsForm, map[string]string, error) {
	values, err := formValues(w, r, formFieldUsername, formFieldRole)
	if err != nil {
		return credentialsForm{}, nil, err
	}
	role := types.Role(strings.ToLower(values[formFieldRole]))
	if role == "" {
		role = defaultRegistrantRole
	}
	return credentialsForm{
		Username: values[formFieldUsername],
		Password: r.PostFormValue(formFieldPassword),
		Role:     role,
	}, values, nil
}

func productFormValues(product types.Product) map[string]string {
	return map[string]string{
		formFieldName:      product.Name,
		formFieldDesc:      product.Description,
		formFieldCategory:  product.Category,
		formFieldUnitPrice: strconv.FormatInt(product.UnitPrice, 10),
	}
}

func logFormValues(entry types.InventoryLog) map[string]string {
	return map[string]string{
		formFieldProductID: strconv.Itoa(entry.ProductID),
		formFieldAction:    string(entry.Action),
		formFieldChange:    strconv.Itoa(entry.Change),
		formFieldNotes:     entry.Notes,
	}
}
