package models

// ThemeResponse is the stored theme preference.
type ThemeResponse struct {
	Theme    string `json:"theme"`
	Resolved string `json:"resolved"`
}

// ThemeRequest updates the theme preference.
type ThemeRequest struct {
	Theme string `json:"theme" binding:"required"`
}
