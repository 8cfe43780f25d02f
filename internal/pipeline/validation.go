package pipeline

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/dvloznov/finance-ingest/internal/domain"
	"github.com/dvloznov/finance-ingest/internal/normalize"
)

// TransactionValidator checks transactions against their struct tags
// before they leave the pipeline.
type TransactionValidator struct {
	validate *validator.Validate
	now      func() time.Time
}

// NewTransactionValidator registers the transaction rules. now bounds the
// notfuture rule; nil means time.Now.
func NewTransactionValidator(now func() time.Time) *TransactionValidator {
	if now == nil {
		now = time.Now
	}
	tv := &TransactionValidator{validate: validator.New(), now: now}

	_ = tv.validate.RegisterValidation("isodate", validateISODate)
	_ = tv.validate.RegisterValidation("notfuture", tv.validateNotFuture)
	_ = tv.validate.RegisterValidation("nonzero", validateNonZero)

	tv.validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return tv
}

// Validate checks one transaction. Transactions whose card-leg amount could
// not be recovered keep their zero amount for review.
func (v *TransactionValidator) Validate(tx domain.Transaction) error {
	if fallback, _ := tx.Metadata[domain.MetaAmountFallback].(bool); fallback {
		return v.validate.StructExcept(tx, "Amount")
	}
	return v.validate.Struct(tx)
}

// Filter returns the valid transactions and one warning per dropped row.
func (v *TransactionValidator) Filter(txs []domain.Transaction) ([]domain.Transaction, []string) {
	valid := make([]domain.Transaction, 0, len(txs))
	var warnings []string
	for i, tx := range txs {
		if err := v.Validate(tx); err != nil {
			warnings = append(warnings, fmt.Sprintf("transaction %d (%q) dropped: %s", i+1, tx.Description, describeValidation(err)))
			continue
		}
		valid = append(valid, tx)
	}
	return valid, warnings
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fieldMessage(fe))
	}
	return strings.Join(parts, "; ")
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "isodate":
		return fe.Field() + " is not a date"
	case "notfuture":
		return fe.Field() + " is in the future"
	case "nonzero":
		return fe.Field() + " is zero"
	case "max":
		return fmt.Sprintf("%s is longer than %s characters", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
}

func validateISODate(fl validator.FieldLevel) bool {
	_, err := time.Parse(normalize.ISOLayout, fl.Field().String())
	return err == nil
}

func (v *TransactionValidator) validateNotFuture(fl validator.FieldLevel) bool {
	d, err := time.Parse(normalize.ISOLayout, fl.Field().String())
	if err != nil {
		return false
	}
	today := v.now().Format(normalize.ISOLayout)
	return d.Format(normalize.ISOLayout) <= today
}

func validateNonZero(fl validator.FieldLevel) bool {
	switch fl.Field().Kind() {
	case reflect.Float32, reflect.Float64:
		return normalize.RoundCents(fl.Field().Float()) != 0
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return fl.Field().Int() != 0
	}
	return false
}
