package branch

import (
	"fmt"
	"strings"
)

func priorityLine(sourcePriority []string) string {
	return strings.ToUpper(strings.Join(sourcePriority, ", "))
}

const defaultSystemPrompt = "You are a strict purchase-order extraction engine for furniture retailers. " +
	"Extract one order from email + attachments into the required JSON schema. " +
	"Return JSON only (no markdown, no commentary). " +
	"Use only German field names exactly as requested."

const portaSystemPrompt = "You are a strict Porta purchase-order extraction engine. " +
	"Extract one order from email + PDF into the required JSON schema. " +
	"Return JSON only (no markdown, no commentary). " +
	"Use only German field names exactly as requested."

const braunSystemPrompt = "You are a strict Braun purchase-order extraction engine. " +
	"Extract one order from email + PDF into the required JSON schema. " +
	"Return JSON only (no markdown, no commentary). " +
	"Use only German field names exactly as requested."

const segmullerSystemPrompt = "You are a strict Segmuller purchase-order extraction engine. " +
	"Extract one order from email + PDF/TIF attachments into the required JSON schema. " +
	"Return JSON only (no markdown, no commentary). " +
	"Use only German field names exactly as requested."

const requiredKeysSection = "=== REQUIRED KEYS (EXACT NAMES) ===\n" +
	"Header keys:\n" +
	"ticket_number, kundennummer, adressnummer, kom_nr, kom_name, " +
	"liefertermin, wunschtermin, bestelldatum, lieferanschrift, tour, " +
	"store_name, store_address, seller, iln, iln_anl, iln_fil, " +
	"human_review_needed, reply_needed, post_case\n" +
	"Item keys:\n" +
	"artikelnummer, modellnummer, menge, furncloud_id\n" +
	"No English aliases.\n" +
	"\n" +
	"=== FIELD OBJECT FORMAT ===\n" +
	"Each header/item field must be an object:\n" +
	`{"value":"...", "source":"pdf|email|image|derived", "confidence":0.0-1.0}` + "\n" +
	"Always include every required key, even if value is empty.\n"

const outputContractSection = "=== OUTPUT CONTRACT ===\n" +
	"Return strict JSON with top-level keys:\n" +
	"message_id, received_at, header, items, status, warnings, errors\n" +
	"status must be one of: ok, partial, failed.\n"

func buildUserInstructionsDefault(sourcePriority []string) string {
	return "=== TASK ===\n" +
		"Extract one XXLutz/Moemax order from email + attachments (PDF pages, furnplan images).\n" +
		fmt.Sprintf("SOURCE TRUST PRIORITY: %s\n", priorityLine(sourcePriority)) +
		"When sources conflict, follow the priority above.\n" +
		"\n" +
		requiredKeysSection +
		"\n" +
		"=== ROW EXTRACTION ===\n" +
		"Create one output item per explicit order row in reading order.\n" +
		"Assign line_no sequentially starting at 1.\n" +
		"Do not reorder rows and do not merge rows.\n" +
		"Extract ALL items from ALL pages - don't stop after first table!\n" +
		"\n" +
		"=== HEADER EXTRACTION HINTS ===\n" +
		"kundennummer: Kundennr/Kunden-Nr/KDNR/Lieferantennummer\n" +
		"kom_nr: Kommission/Komm-Nr/Auftragsnr/Bestellnr\n" +
		"bestelldatum: Bestelldatum/Datum/Belegdatum\n" +
		"liefertermin or wunschtermin: Liefertermin/Wunschliefertermin/Lieferwoche\n" +
		"lieferanschrift: Lieferadresse/Lieferanschrift/Warenempfaenger block\n" +
		"If a 13-digit ILN/GLN appears in the delivery block, extract it into BOTH iln_anl and iln.\n" +
		"Do NOT include that 13-digit ILN line inside lieferanschrift.\n" +
		"'[xxxx xxxx]' bracket codes near furnplan drawings -> furncloud_id\n" +
		"\n" +
		outputContractSection
}

func buildUserInstructionsMomaxBG(sourcePriority []string) string {
	return "=== TASK ===\n" +
		"This is a special-case MOMAX/MOEMAX/AIKO BG (Bulgaria) order.\n" +
		"The order is split across TWO PDF attachments; BOTH PDFs belong to ONE logical order.\n" +
		"Extract ONE merged JSON order from BOTH PDFs (merge header + all items).\n" +
		fmt.Sprintf("SOURCE TRUST PRIORITY: %s\n", priorityLine(sourcePriority)) +
		"If conflicting data exists across sources, strictly TRUST sources in this priority order.\n" +
		"\n" +
		"=== CRITICAL: OUTPUT FIELD NAMES ===\n" +
		"You MUST use these EXACT German field names in your output:\n" +
		"  Header: ticket_number, kundennummer, adressnummer, kom_nr, kom_name, liefertermin, wunschtermin, bestelldatum, lieferanschrift, tour, store_name, store_address, seller, iln_anl, iln_fil, human_review_needed, reply_needed, post_case\n" +
		"  Items: artikelnummer, modellnummer, menge, furncloud_id\n" +
		"Return ONLY valid JSON. Do NOT use English field names.\n" +
		"\n" +
		"=== BG (Bulgaria) PDF FORMAT ===\n" +
		"PDF A (header-like) contains fields like:\n" +
		"- Recipient: MOEMAX BULGARIA / MOMAX BULGARIA / AIKO BULGARIA\n" +
		"- IDENT No: <digits>\n" +
		"- ORDER / No <order number like 1711/12.12.25>\n" +
		"- Term for delivery / Term of delivery: <date like 20.03.26>\n" +
		"- Store: <city like VARNA>\n" +
		"- Address: <store address line>\n" +
		"\n" +
		"PDF B (items table) contains:\n" +
		"- Title like 'MOMAX - ORDER' / 'MOEMAX - ORDER' / 'AIKO - ORDER'\n" +
		"- A table with columns like 'Code/Type' and 'Quantity'\n" +
		"\n" +
		"=== HEADER MAPPING (BG) ===\n" +
		"- kundennummer: use IDENT No digits ONLY (e.g. '20197304')\n" +
		"- kom_nr: this is the order number and can appear in different places:\n" +
		"  - As 'No <digits>/<date>' (e.g. 'No 1711/12.12.25')\n" +
		"  - OR directly in the '<BRAND> - ORDER' header line like '<STORE> - <digits>/<date>'\n" +
		"    Example: 'VARNA - 88801711/12.12.25' => kom_nr = '88801711' (digits only)\n" +
		"  - If both variants exist across the two PDFs, prefer the longer numeric id (e.g. 88801711 over 1711)\n" +
		"- bestelldatum: use the date part after '/' from the same order string (e.g. '12.12.25')\n" +
		"- liefertermin: use 'Term for delivery' / 'Term of delivery' value (keep raw text)\n" +
		"- kom_name: leave empty '' (not used for this BG special case)\n" +
		"- store_name:\n" +
		"  - MOMAX/MOEMAX documents: 'MOMAX BULGARIA - <Store>'\n" +
		"  - AIKO documents: 'AIKO BULGARIA - <Store>'\n" +
		"- store_address: use the store address line\n" +
		"- lieferanschrift: set equal to store_address unless an explicit different delivery address exists\n" +
		"- seller: usually not present; leave empty if missing\n" +
		"- adressnummer, iln_anl, iln_fil, tour: usually not present; leave empty if missing\n" +
		"- human_review_needed, reply_needed, post_case: default to false unless explicitly indicated\n" +
		"\n" +
		"=== ITEM EXTRACTION (BG) ===\n" +
		"Extract ALL item rows from the '<BRAND> - ORDER' table.\n" +
		"- menge: use the Quantity column.\n" +
		"- furncloud_id: typically not present; leave empty unless found.\n" +
		"\n" +
		"CODE/TYPE -> artikelnummer/modellnummer rules:\n" +
		"1) If Code/Type contains '/':\n" +
		"   - artikelnummer = the LAST segment after the final '/'\n" +
		"   - modellnummer = everything BEFORE that last segment, but REMOVE all '/' separators\n" +
		"   - Examples:\n" +
		"     - 'ZB99/76403' -> modellnummer='ZB99', artikelnummer='76403'\n" +
		"     - 'SN/SN/71/SP/91/181' -> modellnummer='SNSN71SP91', artikelnummer='181'\n" +
		"2) Else if Code/Type contains '-': apply standard split rules:\n" +
		"   - Standard: 'MODEL-ARTICLE' => modellnummer=before '-', artikelnummer=after '-'\n" +
		"   - Reversed accessory: '<NUMERIC>-<ALPHA>' => artikelnummer=numeric, modellnummer=alpha\n" +
		"3) Else if Code/Type matches '<NUMERIC> <ALPHA>' (e.g. '30156 OJOO'):\n" +
		"   - artikelnummer = NUMERIC, modellnummer = ALPHA\n" +
		"4) Else: artikelnummer = Code/Type, modellnummer = ''\n" +
		"\n" +
		"=== REQUIRED OUTPUT STRUCTURE ===\n" +
		"Your response must be valid JSON with exactly this top-level structure:\n" +
		"{\n" +
		"  \"message_id\": \"string\",\n" +
		"  \"received_at\": \"ISO-8601\",\n" +
		"  \"header\": { ... field entries ... },\n" +
		"  \"items\": [ ... ],\n" +
		"  \"status\": \"ok|partial|failed\",\n" +
		"  \"warnings\": [],\n" +
		"  \"errors\": []\n" +
		"}\n" +
		"Each header/item field MUST be an object: {\"value\": ..., \"source\": \"pdf|email|image|derived\", \"confidence\": 0.0..1.0}.\n" +
		"Include ALL required keys even if empty (use empty string '' and confidence=0.0).\n"
}

func buildUserInstructionsPorta(sourcePriority []string) string {
	return "=== TASK ===\n" +
		"Extract one Porta order from email + PDF pages.\n" +
		fmt.Sprintf("SOURCE TRUST PRIORITY: %s\n", priorityLine(sourcePriority)) +
		"When sources conflict, follow the priority above.\n" +
		"\n" +
		requiredKeysSection +
		"\n" +
		"=== PORTA CODE SPLIT RULES (STRICT) ===\n" +
		"0) Ignore ANY PDF table 'Artikel-Nr' value (often like '4609952 / 88' or '1005141 / 88'). " +
		"This is a store-internal number and must NEVER be used as artikelnummer or modellnummer.\n" +
		"1) 'Auf. CQ 1616 TP-67430' style main code:\n" +
		"   -> artikelnummer='67430', modellnummer='CQ1616'\n" +
		"2) For '<PREFIX>-<NUMERIC>' where PREFIX starts with 0J or OJ:\n" +
		"   -> modellnummer='<PREFIX>' (NO trailing dash), artikelnummer='<NUMERIC>'\n" +
		"   Examples: OJ99-14323, OJ00-66017, 0J00-30156\n" +
		"3) Standard hyphen split: modellnummer=part BEFORE hyphen, artikelnummer=part AFTER hyphen.\n" +
		"   Example: CQ1616XP-00943 -> modellnummer='CQ1616XP', artikelnummer='00943'\n" +
		"4) Preserve leading zeros, uppercase, and O vs 0 exactly as seen.\n" +
		"\n" +
		"=== PORTA COMPONENT BLOCKS ===\n" +
		"Some rows are followed by a 'bestehend aus je:' block enumerating sub-components.\n" +
		"Each component line is its own item row with its own model/article codes and quantity.\n" +
		"Do not collapse component rows into the parent row.\n" +
		"\n" +
		"=== ROW EXTRACTION ===\n" +
		"Create one output item per explicit order row in reading order.\n" +
		"Assign line_no sequentially starting at 1.\n" +
		"Do not reorder rows.\n" +
		"\n" +
		"=== HEADER EXTRACTION HINTS ===\n" +
		"kundennummer: Kundennr/Lieferanten-Nr\n" +
		"kom_nr: Kommission/Auftragsnr/Bestellnr\n" +
		"ticket_number: ticket number from subject or body when present\n" +
		"lieferanschrift: delivery address block; address lines only (street + PLZ/city), " +
		"drop company and ILN label lines.\n" +
		"If the delivery block contains a 13-digit ILN/GLN, extract it into BOTH iln_anl and iln.\n" +
		"\n" +
		outputContractSection
}

func buildUserInstructionsBraun(sourcePriority []string) string {
	return "=== TASK ===\n" +
		"Extract one Braun order from email + PDF pages.\n" +
		fmt.Sprintf("SOURCE TRUST PRIORITY: %s\n", priorityLine(sourcePriority)) +
		"When sources conflict, follow the priority above.\n" +
		"\n" +
		requiredKeysSection +
		"\n" +
		"=== PDF INPUT USAGE ===\n" +
		"Each PDF page includes image + digital text.\n" +
		"Use the IMAGE to determine table structure, number of rows, and item quantities (menge).\n" +
		"Use digital PDF text only to confirm/correct code fields and OCR ambiguities:\n" +
		"- items[*].modellnummer\n" +
		"- items[*].artikelnummer\n" +
		"Preserve exact characters, including leading zeros and O vs 0.\n" +
		"\n" +
		"=== ROW EXTRACTION ===\n" +
		"Create one output item per explicit order row in reading order.\n" +
		"Assign line_no sequentially starting at 1.\n" +
		"Do not reorder rows.\n" +
		"\n" +
		"=== HEADER EXTRACTION HINTS ===\n" +
		"kundennummer: Kundennr/Kunden-Nr/Debitor/Konto\n" +
		"kom_nr: Auftragsnr/Bestellnr/Order/Kommission\n" +
		"bestelldatum: Bestelldatum/Datum\n" +
		"liefertermin or wunschtermin: Liefertermin/Wunschliefertermin\n" +
		"lieferanschrift: Lieferadresse/Lieferanschrift/Empfaenger block\n" +
		"ILN from Anlieferung block: If the 'Anlieferung' section contains a 13-digit ILN/GLN " +
		"(often starting with 40 or 90), extract it into BOTH iln_anl and iln.\n" +
		"Do NOT include that 13-digit ILN line inside lieferanschrift.\n" +
		"GLN Haus / Fuer Haus is NOT the delivery ILN. Do NOT map GLN Haus to iln or iln_anl.\n" +
		"If both GLN Haus and Anlieferung ILN appear, always use the Anlieferung number.\n" +
		"Keep iln_fil empty unless explicitly present elsewhere.\n" +
		"\n" +
		outputContractSection
}

func buildUserInstructionsSegmuller(sourcePriority []string) string {
	return "=== TASK ===\n" +
		"Extract one Segmuller order from email + PDF/TIF attachments.\n" +
		fmt.Sprintf("SOURCE TRUST PRIORITY: %s\n", priorityLine(sourcePriority)) +
		"When sources conflict, follow the priority above.\n" +
		"\n" +
		requiredKeysSection +
		"\n" +
		"=== DOCUMENT ROLE DETECTION ===\n" +
		"Scan all pages across all PDF attachments. Do not rely only on the first PDF.\n" +
		"Furnplan/scanned pages are valid item-code sources even when digital text on those pages is sparse or empty.\n" +
		"\n" +
		"=== ARTICLE CODE PATTERNS ===\n" +
		"Standard hyphenated codes like 'CQ9606XA-60951' -> SPLIT on hyphen:\n" +
		"  modellnummer = part BEFORE the hyphen, artikelnummer = part AFTER the hyphen.\n" +
		"REVERSED hyphen pattern (CRITICAL - accessory codes):\n" +
		"If code matches <NUMERIC>-<ALPHA> format (e.g., '56847-ZB99', '12345-AB12'):\n" +
		"  artikelnummer = the NUMERIC part, modellnummer = the ALPHA part.\n" +
		"This is the REVERSE of the standard MODEL-ARTICLE pattern!\n" +
		"Examples:\n" +
		"'OJ99-61469' -> artikelnummer='61469', modellnummer='OJ99' (standard)\n" +
		"'56847-ZB99' -> artikelnummer='56847', modellnummer='ZB99' (REVERSED)\n" +
		"Preserve leading zeros and uppercase exactly.\n" +
		"\n" +
		"=== SEGMULLER ITEM SOURCES ===\n" +
		"Priority 1: Furnplan/scanned item rows\n" +
		"Priority 2: Order-table rows only if Furnplan codes are missing or unreadable.\n" +
		"Article codes from Furnplan rows -> same split rules as above\n" +
		"From order-table fallback rows: use only as fallback; prefer richer code fields from Furnplan.\n" +
		"### PDF/TIF Attachment (furnplan style):\n" +
		"'Menge' or quantity column -> menge\n" +
		"'[xxxx xxxx]' bracket codes (may be sideways/rotated) -> furncloud_id\n" +
		"Extract ALL items from ALL pages - don't stop after first table!\n" +
		"\n" +
		"=== SEGMULLER FURNCLOUD_ID ===\n" +
		"Find furncloud_id anywhere in email or PDF (all pages, including scanned/drawing pages).\n" +
		"If a valid furncloud_id is found once, apply the same furncloud_id to all items.\n" +
		"\n" +
		"=== SEGMULLER ADDRESS RULES ===\n" +
		"lieferanschrift: line 1 = street + house number, line 2 = PLZ + city.\n" +
		"Drop recipient/company line from lieferanschrift.\n" +
		"store_name: company entity from Auftragsbestaetigungsanschrift or Rechnungsanschrift block.\n" +
		"store_address: only street + house number + PLZ/city lines from Auftragsbestaetigungsanschrift or Rechnungsanschrift block.\n" +
		"\n" +
		"=== SEGMULLER ILN MAPPING ===\n" +
		"Delivery block ILN/GLN -> iln_anl and iln.\n" +
		"Store/billing ILN from Auftragsbestaetigungsanschrift or Rechnungsanschrift -> iln_fil.\n" +
		"Do not swap delivery/store ILN mappings.\n" +
		"kom_name: only the name part (example: '22300 NUESSLER' -> 'NUESSLER').\n" +
		"\n" +
		outputContractSection
}
