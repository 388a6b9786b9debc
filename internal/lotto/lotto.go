// Package lotto содержит правила розыгрыша: шаблон призов, распределение
// выигрышных номеров по категориям и проверку билета.
package lotto

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/lotto-system/internal/model"
)

// NumberSpace задаёт количество различных шестизначных номеров.
const NumberSpace = 1_000_000

// PickCount задаёт, сколько номеров выбирается при розыгрыше.
const PickCount = 4

// TicketPrice задаёт фиксированную цену билета.
var TicketPrice = decimal.NewFromInt(80)

// ErrNoPicks возвращается, если для розыгрыша не передано ни одного номера.
var ErrNoPicks = errors.New("no numbers to assign")

// Template возвращает список призов нового тиража без выигрышных номеров.
func Template() model.Tiers {
	return model.Tiers{
		{Name: "รางวัลที่ 1", Tier: 1, Amount: 6000000},
		{Name: "รางวัลที่ 2", Tier: 2, Amount: 200000},
		{Name: "รางวัลที่ 3", Tier: 3, Amount: 80000},
		{Name: "เลขท้าย 3 ตัว", Tier: 4, Amount: 4000},
		{Name: "เลขท้าย 2 ตัว", Tier: 5, Amount: 2000},
	}
}

// ParseMode приводит режим розыгрыша из запроса к известному значению.
// Неизвестные значения трактуются как розыгрыш среди проданных билетов.
func ParseMode(raw string) model.DrawMode {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "all":
		return model.DrawAll
	default:
		return model.DrawSold
	}
}

// Source описывает источник случайных чисел.
type Source interface {
	IntN(n int) int
}

type globalSource struct{}

func (globalSource) IntN(n int) int { return rand.IntN(n) }

// DefaultSource использует глобальный генератор math/rand/v2, безопасный для конкурентного использования.
var DefaultSource Source = globalSource{}

// RandomNumber возвращает случайный шестизначный номер с ведущими нулями.
func RandomNumber(src Source) string {
	return fmt.Sprintf("%06d", src.IntN(NumberSpace))
}

// PadPicks дополняет список выбранных номеров до PickCount, повторяя последний.
func PadPicks(picks []string) []string {
	if len(picks) == 0 {
		return nil
	}

	out := append([]string(nil), picks...)
	for len(out) < PickCount {
		out = append(out, out[len(out)-1])
	}
	return out
}

// Assign распределяет выбранные номера по категориям:
// 1 ← picks[0], 2 ← picks[1], 3 ← picks[2], 4 ← последние три цифры picks[0],
// 5 ← последние две цифры picks[3]. Отсутствующие позиции берутся из предыдущих.
func Assign(tiers model.Tiers, picks []string) (model.Tiers, error) {
	if len(picks) == 0 {
		return nil, ErrNoPicks
	}

	at := func(i int) string {
		if i >= len(picks) {
			i = len(picks) - 1
		}
		return picks[i]
	}

	winning := map[int]string{
		1: at(0),
		2: at(1),
		3: at(2),
		4: lastDigits(at(0), 3),
		5: lastDigits(at(3), 2),
	}

	out := tiers.Clone()
	for i := range out {
		w, ok := winning[out[i].Tier]
		if !ok {
			continue
		}
		out[i].Winning = &w
	}

	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

// Match проверяет номер билета по категориям в порядке 1→5, первое совпадение выигрывает.
// Категории с 1 по 3 требуют полного совпадения, 4 сверяет последние три цифры, 5 последние две.
func Match(tiers model.Tiers, number string) (model.PrizeTier, bool) {
	ordered := tiers.Clone()
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Tier < ordered[j].Tier })

	for _, p := range ordered {
		if p.Winning == nil || *p.Winning == "" {
			continue
		}

		switch digits := model.WinningDigits(p.Tier); {
		case digits == 0 || len(number) < digits:
			continue
		case p.Tier <= 3:
			if number == *p.Winning {
				return p, true
			}
		default:
			if number[len(number)-digits:] == *p.Winning {
				return p, true
			}
		}
	}

	return model.PrizeTier{}, false
}

func lastDigits(s string, n int) string {
	if len(s) >= n {
		return s[len(s)-n:]
	}
	return strings.Repeat("0", n-len(s)) + s
}
