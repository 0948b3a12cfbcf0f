package apimodel

import (
	"net/url"
	"strconv"
)

// Route path constants of the blog API
const (
	// Auth Routes
	RouteLogin        = "/api/login"
	RouteLoginGuest   = "/api/login/guest-mode"
	RouteRegister     = "/api/register"
	RouteRefreshToken = "/api/refresh-token"

	// Blog Routes
	RouteBlogs = "/api/blogs"

	// HeaderRequestID correlates client logs with API logs
	HeaderRequestID = "X-Request-ID"
)

// UserDataPath returns the profile route of username
func UserDataPath(username string) string {
	return "/api/" + url.PathEscape(username) + "/data"
}

func BlogPath(id int64) string {
	return RouteBlogs + "/" + strconv.FormatInt(id, 10)
}

func BlogImagesPath(id int64) string {
	return BlogPath(id) + "/images"
}
