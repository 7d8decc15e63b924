package session

// SelectCurrencyRequest selects a currency by list index or by code.
type SelectCurrencyRequest struct {
	Index *int   `json:"index" validate:"required_without=Code,omitempty,min=0"`
	Code  string `json:"code" validate:"required_without=Index,omitempty,len=3,alpha"`
}

// AmountRequest carries the text typed into an amount field. Empty text
// means zero.
type AmountRequest struct {
	Amount string `json:"amount" validate:"max=64"`
}

// AdjustDateRequest steps a date field by one.
type AdjustDateRequest struct {
	Direction int `json:"direction" validate:"oneof=-1 1"`
}

// DateFieldRequest carries the text typed into a date field. Empty text
// resets the field to today.
type DateFieldRequest struct {
	Value string `json:"value" validate:"max=8"`
}
