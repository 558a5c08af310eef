// Package sheets renders expenses as ledger rows for spreadsheet exporters.
package sheets

import "spartispese/internal/core"

// Header names the ledger columns A through I.
var Header = []string{
	"Date", "Group", "Title", "Category", "Paid by", "Paid for", "Amount", "Reimbursement", "Expense ID",
}

// Row returns the ledger row for a rendered expense, one value per Header
// column. Amount is the plain major-unit figure so the sheet can sum it.
func Row(line core.ExpenseLine, groupName string) []any {
	reimbursement := ""
	if line.Reimbursement {
		reimbursement = "yes"
	}
	return []any{
		line.DateLabel,
		groupName,
		line.Title,
		line.CategoryLabel,
		line.PayerName,
		line.Beneficiaries,
		line.Amount,
		reimbursement,
		line.ID,
	}
}
