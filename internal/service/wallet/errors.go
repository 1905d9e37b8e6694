package wallet

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidAmount возвращается, когда сумма операции не положительная
	ErrInvalidAmount = errors.New("wallet: amount must be positive")

	// ErrInsufficientBalance возвращается, когда на кошельке недостаточно средств
	ErrInsufficientBalance = errors.New("wallet: insufficient balance")

	// ErrInvalidInput возвращается при некорректных входных данных
	ErrInvalidInput = errors.New("wallet: invalid input data")

	// ErrAccessDenied возвращается, когда у пользователя нет прав доступа
	ErrAccessDenied = errors.New("wallet: access denied")

	// ErrInternal возвращается при внутренних ошибках сервиса
	ErrInternal = errors.New("wallet: internal error")
)

// InsufficientBalanceError содержит запрошенную и доступную сумму
type InsufficientBalanceError struct {
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("%s: requested %s, available %s",
		ErrInsufficientBalance.Error(), e.Requested.StringFixed(2), e.Available.StringFixed(2))
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}
