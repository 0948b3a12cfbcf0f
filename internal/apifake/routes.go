package apifake

import (
	"net/http"

	"github.com/jrsteele09/go-blog-client/apimodel"
)

func (s *Server) initRoutes() {
	mw := s.APIMiddleware()

	// Auth
	s.RegisterRouteFunc("POST "+apimodel.RouteLogin, ChainMiddleware(s.LoginHandler(), mw...))
	s.RegisterRouteFunc("POST "+apimodel.RouteLoginGuest, ChainMiddleware(s.GuestLoginHandler(), mw...))
	s.RegisterRouteFunc("POST "+apimodel.RouteRegister, ChainMiddleware(s.RegisterHandler(), mw...))
	s.RegisterRouteFunc("POST "+apimodel.RouteRefreshToken, ChainMiddleware(s.RefreshHandler(), mw...))
	s.RegisterRouteFunc("DELETE "+apimodel.RouteRefreshToken, ChainMiddleware(s.RevokeHandler(), mw...))

	// Blogs
	s.RegisterRouteFunc("GET "+apimodel.RouteBlogs, ChainMiddleware(s.ListBlogsHandler(), mw...))
	s.RegisterRouteFunc("GET "+apimodel.RouteBlogs+"/{id}", ChainMiddleware(s.GetBlogHandler(), mw...))
	s.RegisterRouteFunc("GET "+apimodel.RouteBlogs+"/{id}/images", ChainMiddleware(s.BlogImagesHandler(), mw...))

	// Users. /api/blogs/{id} is more specific and wins for /api/blogs/...
	s.RegisterRouteFunc("GET /api/{username}/{resource}", ChainMiddleware(s.UserDataHandler(), mw...))

	s.RegisterRouteFunc("/", ChainMiddleware(s.NotFoundHandler(), mw...))
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}
