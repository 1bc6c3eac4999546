// Package shared содержит общие типы домена электронного журнала:
// ошибки, события и value objects, которыми пользуются все доменные пакеты.
package shared

import (
	"errors"
	"fmt"
)

// ══════════════════════════════════════════════════════════════════════════════
// БАЗОВЫЕ ВИДЫ ОШИБОК
// ══════════════════════════════════════════════════════════════════════════════

// Виды ошибок. Проверяются через errors.Is, в том числе сквозь DomainError.
var (
	ErrNotFound = errors.New("entity not found")

	// Некорректные входные данные.
	ErrInvalidInput    = errors.New("invalid input")
	ErrInvalidFormat   = errors.New("invalid format")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")

	// Блокировка начисления занята другим обработчиком.
	ErrLockNotAcquired = errors.New("lock not acquired")

	// Внешний канал (Redis, доставка уведомлений) не ответил.
	ErrExternalService = errors.New("external service error")
)

// DomainError - ошибка с указанием домена и операции.
// Kind задаёт вид для errors.Is, Err - исходная причина.
type DomainError struct {
	Domain  string
	Op      string
	Kind    error
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	msg := e.Domain + "." + e.Op + ": " + e.Message
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap отдаёт причину, а при её отсутствии - вид ошибки.
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is совпадает и с видом, и с причиной.
func (e *DomainError) Is(target error) bool {
	return (e.Kind != nil && errors.Is(e.Kind, target)) ||
		(e.Err != nil && errors.Is(e.Err, target))
}

// NewDomainError создаёт ошибку без причины.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message}
}

// WrapError оборачивает err в контекст домена.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message, Err: err}
}

// ══════════════════════════════════════════════════════════════════════════════
// ОШИБКИ ДОМЕНОВ
// ══════════════════════════════════════════════════════════════════════════════

// Оценки
var (
	ErrCourseNotFound = NewDomainError("grading", "FindCourse", ErrNotFound, "course not found")
	ErrInvalidWeight  = NewDomainError("grading", "Validate", ErrValueOutOfRange, "category weight must be between 0 and 100")
)

// Цели
var (
	ErrGoalNotFound    = NewDomainError("goal", "Find", ErrNotFound, "academic goal not found")
	ErrInvalidGoalType = NewDomainError("goal", "Validate", ErrInvalidInput, "invalid goal type")
)

// Достижения
var (
	ErrInvalidCriteria  = NewDomainError("achievement", "ParseCriteria", ErrInvalidFormat, "invalid unlock criteria")
	ErrUnknownCriterion = NewDomainError("achievement", "ParseCriteria", ErrInvalidInput, "no recognised criterion")
)

// Прогресс
var (
	ErrProgressNotFound = NewDomainError("progress", "Find", ErrNotFound, "user progress not found")
	ErrNegativePoints   = NewDomainError("progress", "AwardPoints", ErrNegativeValue, "points award cannot be negative")
	ErrUserNotFound     = NewDomainError("progress", "FindUser", ErrNotFound, "user not found")
)

// IsNotFound - сущность не найдена.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation - ошибка во входных данных, повтор не поможет.
func IsValidation(err error) bool {
	for _, kind := range []error{ErrInvalidInput, ErrInvalidFormat, ErrNegativeValue, ErrValueOutOfRange} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

// IsRetryable - операцию имеет смысл повторить позже.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrExternalService) || errors.Is(err, ErrLockNotAcquired)
}
