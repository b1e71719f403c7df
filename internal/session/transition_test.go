package session

import (
	"testing"

	"github.com/orderline-io/orderline/pkg/protocol"
)

func TestNextStage(t *testing.T) {
	tests := []struct {
		name       string
		current    protocol.Stage
		intent     protocol.Intent
		hadErrors  bool
		draftEmpty bool
		want       protocol.Stage
	}{
		{"greeting advances on any intent", protocol.StageGreeting, protocol.IntentContinue, false, true, protocol.StageTakingOrder},
		{"greeting advances even with errors", protocol.StageGreeting, protocol.IntentContinue, true, true, protocol.StageTakingOrder},

		{"taking order stays on continue", protocol.StageTakingOrder, protocol.IntentContinue, false, false, protocol.StageTakingOrder},
		{"confirm moves to confirming", protocol.StageTakingOrder, protocol.IntentConfirm, false, false, protocol.StageConfirmingOrder},
		{"confirm with errors stays", protocol.StageTakingOrder, protocol.IntentConfirm, true, false, protocol.StageTakingOrder},
		{"confirm with empty draft stays", protocol.StageTakingOrder, protocol.IntentConfirm, false, true, protocol.StageTakingOrder},
		{"complete from taking order stays", protocol.StageTakingOrder, protocol.IntentComplete, false, false, protocol.StageTakingOrder},

		{"complete finishes the order", protocol.StageConfirmingOrder, protocol.IntentComplete, false, false, protocol.StageOrderComplete},
		{"complete with errors stays confirming", protocol.StageConfirmingOrder, protocol.IntentComplete, true, false, protocol.StageConfirmingOrder},
		{"complete with empty draft reopens ordering", protocol.StageConfirmingOrder, protocol.IntentComplete, false, true, protocol.StageTakingOrder},
		{"continue during read-back reopens ordering", protocol.StageConfirmingOrder, protocol.IntentContinue, false, false, protocol.StageTakingOrder},
		{"confirm again stays confirming", protocol.StageConfirmingOrder, protocol.IntentConfirm, false, false, protocol.StageConfirmingOrder},

		{"abandon fails from greeting", protocol.StageGreeting, protocol.IntentAbandon, false, true, protocol.StageFailed},
		{"abandon fails from taking order", protocol.StageTakingOrder, protocol.IntentAbandon, false, false, protocol.StageFailed},
		{"abandon fails from confirming", protocol.StageConfirmingOrder, protocol.IntentAbandon, false, false, protocol.StageFailed},

		{"order complete is absorbing", protocol.StageOrderComplete, protocol.IntentContinue, false, false, protocol.StageOrderComplete},
		{"failed is absorbing", protocol.StageFailed, protocol.IntentComplete, false, false, protocol.StageFailed},
		{"failed absorbs abandon", protocol.StageFailed, protocol.IntentAbandon, false, false, protocol.StageFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextStage(tt.current, tt.intent, tt.hadErrors, tt.draftEmpty)
			if got != tt.want {
				t.Errorf("NextStage(%s, %s, errors=%v, empty=%v) = %s, want %s",
					tt.current, tt.intent, tt.hadErrors, tt.draftEmpty, got, tt.want)
			}
		})
	}
}
