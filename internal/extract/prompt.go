package extract

import "strings"

// extractionPrompt embeds the whole extraction policy as natural-language
// instructions; the model, not this program, performs the receipt parsing.
// The currency, currency id, and source account placeholders are filled from
// the configured defaults before sending.
const extractionPrompt = `
You are given an image of a retail receipt. Read the receipt text and return only the following JSON object:
{
  "fire_webhooks": true,
  "group_title": "string",
  "transactions": [
    {
      "type": "withdrawal",
      "amount": "0.00",
      "date": "YYYY-MM-DD",
      "description": "string",
      "currency_id": "{{CURRENCY_ID}}",
      "category_name": "string",
      "currency_code": "{{CURRENCY_CODE}}",
      "source_name": "{{SOURCE_NAME}}",
      "destination_name": "string",
      "tags": "Firefly Assistant",
      "notes": ""
    }
  ]
}
Extraction rules
	1.	date
    •	Find the transaction date near the totals or cashier info.
    •	Accept formats like YYYY-MM-DD, DD.MM.YYYY, DD/MM/YYYY, YY MM DD, etc.
    •	Normalize to ISO YYYY-MM-DD. For 2-digit years, assume 2000-2099 (20 08 25 → 2020-08-25).
	2.	items → transactions
    •	Create one transaction per purchasable line-item (not totals, VAT/Moms, payment lines, or headers).
    •	Description: the item name on the line.
    •	Final price per line:
    •	If the line shows qty x unit_price, multiply and use the line total.
    •	If both unit and line totals appear, choose the line total.
    •	If a discount applies to that item line, subtract it to get the final line price.
    •	If Rabatt (discount) appears on a separate line, apply it to the previous item.
    •	Ignore non-item lines such as TOTAL, Moms, Brutto, payment method, change, loyalty IDs, and return policies.
	3.	amount normalization
    •	Use the line total, not a subtotal.
    •	Keep two decimals as a string (Firefly format), decimal dot; convert comma decimals (e.g., 543,20 → "543.20").
    •	Remove thousands separators and currency symbols/text.
	4.	currency
    •	If the receipt shows the currency, set "currency_code" and "currency_id" accordingly.
    •	If currency is unknown, still set "currency_code": "{{CURRENCY_CODE}}" and "currency_id": "{{CURRENCY_ID}}" (the configured default).
	5.	destination_name (merchant)
    •	First check if a store/merchant name exists in the given list below. If it does, use that exact name.
    •	If not, use the store/merchant name exactly as printed (e.g., BAUHAUS or Bauhaus Askim).
	6.	group_title
    •	Use a concise category inferred from the merchant when obvious (e.g., Groceries, Hardware & DIY, Pharmacy).
    •	If uncertain, use the merchant name.
	7.	tags
    •	Always set to "Firefly Assistant".
	8.	Output constraints
    •	Return only valid JSON exactly matching the structure above.
    •	Do not include reasoning, comments, or extra fields.
	9.	source_name
    •	DO NOT MODIFY source_name.
	10.	notes
    •	Keep the notes field empty unless there is specific additional info to add.
	11.	category_name
    •	Choose the most specific category possible from the given list below.
    •	If unsure, leave empty.

Do not include any markdown formatting.
` + "NEVER ADD ```json ``` into the response\n" + `RETURN ALL ITEMS FROM THE RECEIPT
DO NOT ADD ITEMS WITH ZERO AMOUNT
`

// buildPrompt renders the full instruction text: fixed policy with the
// configured defaults substituted, followed by the two ledger context lists
// as plain text.
func buildPrompt(hints Hints, d Defaults) string {
	r := strings.NewReplacer(
		"{{CURRENCY_CODE}}", d.CurrencyCode,
		"{{CURRENCY_ID}}", d.CurrencyID,
		"{{SOURCE_NAME}}", d.SourceName,
	)

	var b strings.Builder
	b.WriteString(r.Replace(extractionPrompt))
	b.WriteString("\nExisting expense categories: ")
	b.WriteString(renderList(hints.Categories))
	b.WriteString("\nExisting store/merchant names: ")
	b.WriteString(renderList(hints.Merchants))
	b.WriteString("\n")
	return b.String()
}

func renderList(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	return strings.Join(items, ", ")
}
