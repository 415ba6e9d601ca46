package platform

// Credentials identify the bot account at login
type Credentials struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// User is the author of a post
type User struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ScreenName string `json:"screen_name"`
}

// Post is a single search match
type Post struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	Author User   `json:"user"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// SearchResponse is the body of a search call
type SearchResponse struct {
	Posts []Post `json:"posts"`
}

type mediaResponse struct {
	MediaID string `json:"media_id"`
}

type createPostRequest struct {
	Text     string   `json:"text"`
	MediaIDs []string `json:"media_ids,omitempty"`
	ReplyTo  string   `json:"reply_to,omitempty"`
}

type createPostResponse struct {
	ID string `json:"id"`
}

// apiError is the error envelope returned on non-2xx responses
type apiError struct {
	Error  string `json:"error"`
	Errors []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

func (e apiError) message() string {
	if e.Error != "" {
		return e.Error
	}
	if len(e.Errors) > 0 {
		return e.Errors[0].Message
	}
	return ""
}
