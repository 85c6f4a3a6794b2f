package model

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

func (r AdjustStockRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Delta, validation.Required, validation.Min(-100000), validation.Max(100000)),
		validation.Field(&r.Reason, validation.Required, validation.Length(1, 255)),
	)
}
