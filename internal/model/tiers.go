package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mmeshcher/lotto-system/internal/validation"
)

// TierCount задаёт количество призовых категорий в каждом тираже.
const TierCount = 5

// ErrMalformedTiers возвращается, если сохранённый список призов не проходит проверку.
var ErrMalformedTiers = errors.New("malformed prize tiers")

// PrizeTier описывает одну призовую категорию тиража.
type PrizeTier struct {
	Name    string  `json:"name"`
	Tier    int     `json:"tier"`
	Amount  int64   `json:"amount"`
	Winning *string `json:"winning"`
}

// Tiers описывает упорядоченный список из пяти призовых категорий.
type Tiers []PrizeTier

// WinningDigits возвращает длину выигрышного номера для категории.
func WinningDigits(tier int) int {
	switch tier {
	case 1, 2, 3:
		return 6
	case 4:
		return 3
	case 5:
		return 2
	}
	return 0
}

// Drawn сообщает, что хотя бы одна категория уже имеет выигрышный номер.
func (t Tiers) Drawn() bool {
	for _, p := range t {
		if p.Winning != nil && strings.TrimSpace(*p.Winning) != "" {
			return true
		}
	}
	return false
}

// Clone возвращает глубокую копию списка.
func (t Tiers) Clone() Tiers {
	out := make(Tiers, len(t))
	for i, p := range t {
		if p.Winning != nil {
			w := *p.Winning
			p.Winning = &w
		}
		out[i] = p
	}
	return out
}

// Validate проверяет форму списка: ровно пять категорий 1..5 без повторов,
// выигрышные номера либо отсутствуют, либо состоят из нужного числа цифр.
func (t Tiers) Validate() error {
	if len(t) != TierCount {
		return fmt.Errorf("%w: want %d tiers, got %d", ErrMalformedTiers, TierCount, len(t))
	}

	seen := make(map[int]bool, TierCount)
	for _, p := range t {
		digits := WinningDigits(p.Tier)
		if digits == 0 {
			return fmt.Errorf("%w: unknown tier %d", ErrMalformedTiers, p.Tier)
		}
		if seen[p.Tier] {
			return fmt.Errorf("%w: duplicate tier %d", ErrMalformedTiers, p.Tier)
		}
		seen[p.Tier] = true

		if p.Amount < 0 {
			return fmt.Errorf("%w: negative amount for tier %d", ErrMalformedTiers, p.Tier)
		}
		if p.Winning != nil && !validation.IsDigits(*p.Winning, digits) {
			return fmt.Errorf("%w: tier %d winning %q is not %d digits", ErrMalformedTiers, p.Tier, *p.Winning, digits)
		}
	}

	return nil
}

// ParseTiers разбирает JSON-представление списка призов и проверяет его форму.
func ParseTiers(data []byte) (Tiers, error) {
	var t Tiers
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTiers, err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Marshal сериализует список призов для хранения.
func (t Tiers) Marshal() ([]byte, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(t)
}
