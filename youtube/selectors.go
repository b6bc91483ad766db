package youtube

// Page selectors. These follow the site's current markup and are the first
// thing to check when a scrape starts failing with element timeouts.
const (
	// Sign-in.
	SelSignInButton  = "#end ytd-button-renderer a"
	SelEmailInput    = "#identifierId"
	SelEmailNext     = "#identifierNext button"
	SelPasswordInput = "input[name=Passwd]"
	SelPasswordNext  = "#passwordNext button"

	// About panel.
	SelDescriptionMore = "yt-description-preview-view-model truncated-text > button"
	SelViewEmail       = "//button[.//span[text()='View email address']]"
	SelRecaptchaFrame  = "//iframe[@title='reCAPTCHA']"
	SelRecaptchaAnswer = "#g-recaptcha-response"
	SelSubmitButton    = "#submit-btn"
	SelAdditionalInfo  = "//*[@id='additional-info-container']/table"

	// Videos tab.
	SelVideoItem = "ytd-rich-grid-media a#video-title-link"
)
