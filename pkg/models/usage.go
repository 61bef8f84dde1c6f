package models

import "time"

// UsageLog is one audit record of a billable call
type UsageLog struct {
	ID         int64     `json:"id" db:"id"`
	UserID     string    `json:"user_id" db:"user_id"`
	LanguageID *int      `json:"language_id,omitempty" db:"language_id"`
	Endpoint   string    `json:"endpoint" db:"endpoint"`
	Method     string    `json:"method" db:"method"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// EndpointStat aggregates usage logs per (method, endpoint)
type EndpointStat struct {
	Method     string    `json:"method"`
	Endpoint   string    `json:"endpoint"`
	Count      int64     `json:"count"`
	LastCalled time.Time `json:"lastCalled"`
}

// Language is a row of the static language reference table
type Language struct {
	ID   int    `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
	Code string `json:"code" db:"code"`
}

// DefaultLanguages are seeded into the languages table at startup
var DefaultLanguages = []Language{
	{Name: "English", Code: "en"},
	{Name: "Spanish", Code: "es"},
	{Name: "French", Code: "fr"},
	{Name: "German", Code: "de"},
	{Name: "Italian", Code: "it"},
	{Name: "Portuguese", Code: "pt"},
	{Name: "Polish", Code: "pl"},
	{Name: "Turkish", Code: "tr"},
	{Name: "Russian", Code: "ru"},
	{Name: "Dutch", Code: "nl"},
	{Name: "Czech", Code: "cs"},
	{Name: "Arabic", Code: "ar"},
	{Name: "Chinese", Code: "zh-cn"},
	{Name: "Japanese", Code: "ja"},
	{Name: "Hungarian", Code: "hu"},
	{Name: "Korean", Code: "ko"},
	{Name: "Hindi", Code: "hi"},
}
