package ui

import (
	"fmt"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/huh"
	"github.com/tturner/etherip/internal/cip/types"
)

// WriteConfirmForm asks before a value is written to a controller.
func WriteConfirmForm(target, tag string, v types.Value, confirmed *bool) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Write %s to %s?", tag, target)).
				Description(v.String()).
				Affirmative("Write").
				Negative("Cancel").
				Value(confirmed),
		),
	)
}

// ConfirmWrite runs WriteConfirmForm and reports the answer.
func ConfirmWrite(target, tag string, v types.Value) (bool, error) {
	confirmed := false
	if err := WriteConfirmForm(target, tag, v, &confirmed).Run(); err != nil {
		return false, err
	}
	return confirmed, nil
}

// CopyValue puts the value on the system clipboard.
func CopyValue(v types.Value) error {
	if clipboard.Unsupported {
		return fmt.Errorf("clipboard not available on this system")
	}
	return clipboard.WriteAll(FormatCopy(v))
}
