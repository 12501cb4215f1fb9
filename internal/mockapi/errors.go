package mockapi

import (
	"net/http"

	"github.com/tansive/restclient/internal/common/apperrors"
)

var (
	ErrMockAPI      = apperrors.New("mock api error").SetStatusCode(http.StatusInternalServerError)
	ErrPostNotFound = ErrMockAPI.New("post not found").SetStatusCode(http.StatusNotFound)
	ErrInvalidPost  = ErrMockAPI.New("invalid post").SetStatusCode(http.StatusBadRequest)
)
