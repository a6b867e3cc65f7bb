package records

// extractionPrompt asks the model for the canonical document shape. Tables
// come back in the compact pipe format so a truncated response still yields
// usable rows after repair.
const extractionPrompt = `You are reading a scanned hospital department record (a register page, form, chart, or handwritten log).

Transcribe everything you can read into this exact JSON shape:

{
  "title": "document title or heading",
  "documentType": "register | form | chart | note | other",
  "keyValuePairs": [{"key": "Ward", "value": "3B"}],
  "sections": [{"heading": "Remarks", "content": "free text"}],
  "tables": [{"caption": "Stock Register", "data": "Item|Qty|Expiry\nAtropine|5|2027-01\nAdrenaline|12|2026-11"}]
}

Rules:
- Every table's "data" value is pipe-separated cells, one row per line, first line is the header row.
- Use "-" for a cell you cannot read. Never invent values.
- Keep handwritten entries verbatim, including spelling mistakes.
- Respond with the JSON object only. No commentary, no markdown fences.`
