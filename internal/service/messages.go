package service

import "fmt"

const (
	msgPhotoAdded        = "📷 Photo added (%d in total). Send more photos or a comment, then press Finalize or type \"next\"."
	msgTextAdded         = "📝 Noted. Add more or press Finalize when you're done."
	msgBusy              = "⏳ Still processing your receipt, please wait."
	msgAwaitingDecision  = "Please confirm, refine or cancel the transactions above first."
	msgNoMaterial        = "Send a receipt photo or describe the purchase first."
	msgProcessing        = "⏳ Reading your receipt..."
	msgExhausted         = "❌ Could not process the receipt after %d attempts: %s\n\nThe request was reset, please start over."
	msgNothingToConfirm  = "There is nothing to confirm."
	msgSubmitted         = "✅ Saved %d transaction(s) to the ledger."
	msgDeclined          = "❌ The ledger service declined the transactions. You can try again, refine or cancel."
	msgRefine            = "✏️ Send your correction, then press Finalize or type \"next\"."
	msgCancelled         = "🔄 Cancelled. Send a new receipt whenever you're ready."
	msgStarted           = "👋 Send a receipt photo (or several) and/or describe the purchase. Type \"next\" when you're done."
	msgCarriedOver       = "%d photo(s) from the previous attempt are included."
	msgLedgerConnection  = "❌ Could not reach the ledger service. Try again in a moment."
	msgLedgerAuth        = "❌ The ledger rejected the bot's credentials. Ask the administrator to check the access token."
	msgLedgerAccount     = "❌ The default ledger account is missing or misconfigured."
	msgLedgerGeneric     = "❌ Failed to save transactions: %s"
	msgStatus            = "Status: %s\nPhotos: %d\nMessages: %d\nAttempts: %d/%d"
	msgStatusLastError   = "\nLast error: %s"
	msgStatusTransaction = "\nPending transactions: %d"
)

func ledgerErrorMessage(kind LedgerErrorKind, err error) string {
	switch kind {
	case LedgerErrorConnectivity:
		return msgLedgerConnection
	case LedgerErrorAuthentication:
		return msgLedgerAuth
	case LedgerErrorAccount:
		return msgLedgerAccount
	default:
		return fmt.Sprintf(msgLedgerGeneric, err.Error())
	}
}
