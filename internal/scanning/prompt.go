package scanning

// receiptScanPrompt is shared by all providers. The extraction pipeline copes
// with replies that ignore the format rules, but asking for them keeps most
// replies on the fast path.
const receiptScanPrompt = `You are analyzing a photo of a receipt, invoice or bank slip. Read every line and list the money movements it records.

For each transaction return an object with:

1. "amount": the total as a number, without currency symbols (e.g. 42.75 for $42.75). Never negative.
2. "isExpense": true when money was spent or paid out, false for refunds, deposits and other income.
3. "note": the merchant or a short description, e.g. "CVS Pharmacy - prescriptions".
4. "category": a one or two word spending category such as "Groceries", "Dining", "Transport", "Health".
5. "date": the transaction date in ISO 8601 format (YYYY-MM-DD).

Return ONLY a JSON array, even when there is a single transaction:
[
  {"amount": 0.00, "isExpense": true, "note": "Store Name", "category": "Groceries", "date": "YYYY-MM-DD"}
]

Important:
- Use the final total (after tax and discounts), not individual line items, unless the document lists separate payments
- If you cannot find a field, use null for that field; do not guess dates
- Do not include any text before or after the JSON
- Do not use markdown code blocks`
