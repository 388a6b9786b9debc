package service

import (
	"errors"
	"fmt"
)

// Kind классифицирует ошибку бизнес-логики для транспортного слоя.
type Kind int

const (
	KindUnexpected Kind = iota
	KindValidation
	KindNotFound
	KindForbidden
	KindConflict
	KindDataCorruption
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindDataCorruption:
		return "data_corruption"
	}
	return "unexpected"
}

// Error описывает ошибку бизнес-правила с устойчивым сообщением для клиента.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

var (
	ErrInvalidInput  = newError(KindValidation, "invalid input")
	ErrInvalidAmount = newError(KindValidation, "amount must be greater than 0")

	ErrUserNotFound   = newError(KindNotFound, "user not found")
	ErrPeriodNotFound = newError(KindNotFound, "no reward period yet")
	ErrTicketNotFound = newError(KindNotFound, "lotto not found")
	ErrOrderNotFound  = newError(KindNotFound, "order not found")
	// ErrNoDrawCandidates возвращается, если в тираже нет номеров для розыгрыша.
	ErrNoDrawCandidates = newError(KindNotFound, "no lotto numbers to draw from")
	ErrSoldOut          = newError(KindNotFound, "no lotto left in this reward period")

	ErrForbidden = newError(KindForbidden, "operation not allowed for this role")

	ErrDuplicateNumber   = newError(KindConflict, "this number already exists in this reward period")
	ErrDuplicateEmail    = newError(KindConflict, "email already registered")
	ErrPeriodClosed      = newError(KindConflict, "reward period already drawn")
	ErrNotAvailable      = newError(KindConflict, "lotto not available")
	ErrAlreadyDrawn      = newError(KindConflict, "reward period already drawn")
	ErrAlreadyRedeemed   = newError(KindConflict, "prize already redeemed")
	ErrNoPrize           = newError(KindConflict, "order did not win a prize")
	ErrInsufficientFunds = newError(KindConflict, "insufficient funds")
	ErrExhaustedSpace    = newError(KindConflict, "not enough free lotto numbers left in this reward period")
	// ErrActivePeriodOpen возвращается при включённом режиме единственного активного тиража.
	ErrActivePeriodOpen = newError(KindConflict, "latest reward period is not drawn yet")

	ErrDataCorruption = newError(KindDataCorruption, "stored reward data is invalid")
)

// KindOf возвращает класс ошибки; всё, что не является *Error, считается непредвиденным.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnexpected
}

func wrap(sentinel *Error, format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), sentinel)
}
