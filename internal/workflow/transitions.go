package workflow

import (
	"fmt"

	"github.com/xela07ax/review-workflow/internal/domain"
)

// transitions: направленный граф статусов заявки без учета OnHold/Cancelled,
// которые достижимы из любого нетерминального статуса.
var transitions = map[domain.RequestStatus][]domain.RequestStatus{
	domain.StatusDraft:                     {domain.StatusLegalIntake},
	domain.StatusLegalIntake:               {domain.StatusAssignAttorney, domain.StatusInReview},
	domain.StatusAssignAttorney:            {domain.StatusInReview},
	domain.StatusInReview:                  {domain.StatusCloseout, domain.StatusCompleted},
	domain.StatusCloseout:                  {domain.StatusAwaitingForesideDocuments, domain.StatusCompleted},
	domain.StatusAwaitingForesideDocuments: {domain.StatusCompleted},
	domain.StatusOnHold:                    {},
	domain.StatusCompleted:                 {},
	domain.StatusCancelled:                 {},
}

// IsKnownStatus: статус присутствует в графе.
func IsKnownStatus(s domain.RequestStatus) bool {
	_, ok := transitions[s]
	return ok
}

// IsValidTransition проверяет ребро from -> to.
// Неизвестный from — признак порчи данных и возвращается как ошибка.
func IsValidTransition(from, to domain.RequestStatus) (bool, error) {
	targets, ok := transitions[from]
	if !ok {
		return false, fmt.Errorf("%w: %q", domain.ErrUnknownStatus, from)
	}
	if from.IsTerminal() || !IsKnownStatus(to) || from == to {
		return false, nil
	}

	switch {
	case to == domain.StatusCancelled:
		return true, nil
	case to == domain.StatusOnHold:
		return from != domain.StatusOnHold, nil
	case from == domain.StatusOnHold:
		// Возобновление: в любой нетерминальный статус, который мог быть "предыдущим"
		return !to.IsTerminal(), nil
	}

	for _, t := range targets {
		if t == to {
			return true, nil
		}
	}
	return false, nil
}

// CheckTransition: то же, что IsValidTransition, но в виде ошибки для оркестратора.
func CheckTransition(action string, from, to domain.RequestStatus) error {
	ok, err := IsValidTransition(from, to)
	if err != nil {
		return err
	}
	if !ok {
		return domain.NewTransitionError(action, fmt.Sprintf("transition %s -> %s is not allowed", from, to))
	}
	return nil
}
