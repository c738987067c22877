// Package schema defines the column contract shared by ingestion and export.
//
// The header list mirrors row 1 of the "sessions" sheet exactly. Field order
// matters for CSV compatibility; field presence does not: a column missing
// from a source payload defaults to the empty string.
package schema

// Field names for every column referenced programmatically.
const (
	FieldSessionID         = "session_id"
	FieldTSOpen            = "ts_open"
	FieldReferrer          = "referrer"
	FieldLandingURL        = "landing_url"
	FieldUTMSource         = "utm_source"
	FieldUTMMedium         = "utm_medium"
	FieldUTMCampaign       = "utm_campaign"
	FieldCountry           = "country"
	FieldCity              = "city"
	FieldDeviceType        = "device_type"
	FieldOS                = "os"
	FieldBrowser           = "browser"
	FieldUserAgent         = "user_agent"
	FieldScreenWidth       = "screen_width"
	FieldScreenHeight      = "screen_height"
	FieldViewportWidth     = "viewport_width"
	FieldViewportHeight    = "viewport_height"
	FieldDevicePixelRatio  = "device_pixel_ratio"
	FieldLanguage          = "language"
	FieldTimezoneOffsetMin = "timezone_offset_min"
	FieldFormPrenom        = "form_prenom"
	FieldFormNom           = "form_nom"
	FieldFormEmail         = "form_email"
	FieldFormWhatsapp      = "form_whatsapp"
	FieldFormPays          = "form_pays"
	FieldFormDateNaissance = "form_date_naissance"
	FieldFormMontantEUR    = "form_montant_eur"
	FieldFormDureeMois     = "form_duree_mois"
	FieldFormRaison        = "form_raison"
	FieldFormStatut        = "form_statut"
	FieldFormRevenus       = "form_revenus"
	FieldFormPieces        = "form_pieces"
	FieldCTAClicked        = "cta_clicked"
	FieldCTALabel          = "cta_label"
	FieldTSCTA             = "ts_cta"
	FieldLastEvent         = "last_event"
	FieldTSLastUpdate      = "ts_last_update"
)

// Headers is the canonical column order. Exported CSV uses this order;
// parsed CSV may present the columns in any order (matched by name).
var Headers = []string{
	FieldSessionID, FieldTSOpen, FieldReferrer, FieldLandingURL,
	FieldUTMSource, FieldUTMMedium, FieldUTMCampaign,
	FieldCountry, FieldCity,
	FieldDeviceType, FieldOS, FieldBrowser, FieldUserAgent,
	FieldScreenWidth, FieldScreenHeight, FieldViewportWidth, FieldViewportHeight, FieldDevicePixelRatio,
	FieldLanguage, FieldTimezoneOffsetMin,
	FieldFormPrenom, FieldFormNom, FieldFormEmail, FieldFormWhatsapp, FieldFormPays, FieldFormDateNaissance,
	FieldFormMontantEUR, FieldFormDureeMois, FieldFormRaison, FieldFormStatut, FieldFormRevenus, FieldFormPieces,
	FieldCTAClicked, FieldCTALabel, FieldTSCTA,
	FieldLastEvent, FieldTSLastUpdate,
}
