package session

import "github.com/orderline-io/orderline/pkg/protocol"

// NextStage is the only place stage logic lives. It maps the current
// stage, the turn's parsed intent, and the validation outcome to the next
// stage. Pure: no I/O, no state.
//
// Terminal stages are absorbing. ABANDON fails the call from any stage.
// A CONFIRM with an empty draft stays in TAKING_ORDER (nothing to read
// back), and a COMPLETE only lands while the draft is non-empty and the
// turn validated cleanly.
func NextStage(current protocol.Stage, intent protocol.Intent, hadErrors, draftEmpty bool) protocol.Stage {
	if current.Terminal() {
		return current
	}
	if intent == protocol.IntentAbandon {
		return protocol.StageFailed
	}

	switch current {
	case protocol.StageGreeting:
		// The first caller utterance always moves into ordering.
		return protocol.StageTakingOrder

	case protocol.StageTakingOrder:
		if intent == protocol.IntentConfirm && !hadErrors && !draftEmpty {
			return protocol.StageConfirmingOrder
		}
		return protocol.StageTakingOrder

	case protocol.StageConfirmingOrder:
		switch intent {
		case protocol.IntentComplete:
			if !hadErrors && !draftEmpty {
				return protocol.StageOrderComplete
			}
			if draftEmpty {
				return protocol.StageTakingOrder
			}
			return protocol.StageConfirmingOrder
		case protocol.IntentContinue:
			// The caller requested a change during read-back.
			return protocol.StageTakingOrder
		default:
			return protocol.StageConfirmingOrder
		}
	}
	return current
}
