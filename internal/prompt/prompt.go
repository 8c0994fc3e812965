// Package prompt builds the system prompts that encode the extraction
// output contract for the LLM providers.
package prompt

import (
	"fmt"
	"strings"
	"time"
)

// DefaultIncomeCategories is the vocabulary used when the caller supplies none.
var DefaultIncomeCategories = []string{
	"Salary", "Freelance", "Investment", "Business", "Gift", "Bonus", "Rental", "Other",
}

// DefaultExpenseCategories is the vocabulary used when the caller supplies none.
var DefaultExpenseCategories = []string{
	"Food", "Entertainment", "Transportation", "Shopping", "Bills", "Healthcare", "Education", "Other",
}

// ForText builds the system prompt for text (and transcript) input.
// currentDate anchors relative dates; zero means today. Caller-supplied
// category lists are embedded verbatim, case preserved.
func ForText(currentDate time.Time, incomeCategories, expenseCategories []string) string {
	var b strings.Builder
	writeHeader(&b)
	writeFieldRules(&b, currentDate, incomeCategories, expenseCategories)
	b.WriteString("\nNote: the text from the user may be transcribed from a voice recording, so it may contain errors. Try to understand the user's intent and correct the errors.\n")
	writeFooter(&b)
	return b.String()
}

// ForImage builds the system prompt for image input. It relaxes the single
// transaction framing: a receipt or screenshot may contain several line items.
func ForImage(currentDate time.Time, incomeCategories, expenseCategories []string) string {
	var b strings.Builder
	writeHeader(&b)
	writeFieldRules(&b, currentDate, incomeCategories, expenseCategories)
	b.WriteString("\nNote: the user provides an image such as a receipt, invoice or banking app screenshot. It may contain multiple transactions; extract every line item you can identify into its own entry of the transactions array.\n")
	writeFooter(&b)
	return b.String()
}

func writeHeader(b *strings.Builder) {
	b.WriteString(`You are a helpful assistant that analyzes the user's input to help them track their spending. Respond with a JSON object in this format:
{
  "success": true | false,
  "transactions": [
    {
      "name": "Transaction name",
      "type": "income" | "expense",
      "category": "Food",
      "date": "2025-01-01",
      "amount": 100
    }
  ]
}

Fields:
- success: whether at least one transaction was successfully parsed. If not, set it to false and leave the transactions array empty.
`)
}

func writeFieldRules(b *strings.Builder, currentDate time.Time, income, expense []string) {
	if currentDate.IsZero() {
		currentDate = time.Now()
	}
	if len(income) == 0 {
		income = DefaultIncomeCategories
	}
	if len(expense) == 0 {
		expense = DefaultExpenseCategories
	}

	b.WriteString("- name: the name of the transaction, in the same language as the user's input. Other fields must be in English. Use correct capitalization, especially for brand and product names (\"iphone 15 pro max\" becomes \"iPhone 15 Pro Max\"). Otherwise uppercase the first letter.\n")
	b.WriteString("- type: either \"income\" or \"expense\".\n")
	fmt.Fprintf(b, "- category: the category that best fits the transaction. If the user names a category that is not in the list, use \"Other\".\nFor type \"income\", the category list is: %s\nFor type \"expense\", the category list is: %s\nKeep the capitalization of the category exactly as listed.\n",
		quoteList(income), quoteList(expense))
	fmt.Fprintf(b, "- date: the date of the transaction. If the user does not provide a date, use the current date, which is %s.\n",
		currentDate.Format("2006-01-02"))
	b.WriteString("- amount: the amount as a plain number, no currency symbol or other text. Convert shorthand like \"K\" or \"M\" to numbers: \"1K\" becomes 1000, \"1k5\" becomes 1500.\n")
	b.WriteString("\nIf the user does not provide a field, leave it null.\n")
}

func writeFooter(b *strings.Builder) {
	b.WriteString("YOU MUST RESPOND WITH A VALID JSON OBJECT, NO OTHER TEXT OR MARKDOWN.\n")
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = "'" + item + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
