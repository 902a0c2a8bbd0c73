package prompt

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"
)

const SelectTitle = "Select an account to manipulate"

// ErrCancelled is returned by a Menu when the user backs out.
var ErrCancelled = errors.New("selection cancelled")

// Menu presents a single-choice list and returns the chosen position.
type Menu interface {
	Choose(title string, options []string) (int, error)
}

// Select picks one item: none for an empty list, the only item without
// prompting, otherwise whatever the menu returns. Items keep the caller's order.
func Select[T any](menu Menu, items []T, label func(T) string) (T, bool, error) {
	var zero T
	switch len(items) {
	case 0:
		return zero, false, nil
	case 1:
		return items[0], true, nil
	}
	options := make([]string, len(items))
	for i, item := range items {
		options[i] = label(item)
	}
	idx, err := menu.Choose(SelectTitle, options)
	if errors.Is(err, ErrCancelled) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, err
	}
	if idx < 0 || idx >= len(items) {
		return zero, false, fmt.Errorf("menu returned out of range choice %d", idx)
	}
	return items[idx], true, nil
}

// HuhMenu renders the choice list with charmbracelet/huh.
type HuhMenu struct {
	Accessible bool
}

func (m HuhMenu) Choose(title string, options []string) (int, error) {
	opts := make([]huh.Option[int], len(options))
	for i, label := range options {
		opts[i] = huh.NewOption(label, i)
	}
	selected := 0
	field := huh.NewSelect[int]().Title(title).Options(opts...).Value(&selected)
	err := huh.NewForm(huh.NewGroup(field)).WithAccessible(m.Accessible).Run()
	if errors.Is(err, huh.ErrUserAborted) {
		return -1, ErrCancelled
	}
	if err != nil {
		return -1, err
	}
	return selected, nil
}
