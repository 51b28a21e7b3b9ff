package nughttp

import "net/http"

// withAuth guards next with basic auth when users are configured.
func (s *Server) withAuth(next http.Handler) http.Handler {
	if len(s.cfg.Users) == 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok {
			s.unauthorized(w)
			return
		}
		want, ok := s.cfg.Users[user]
		if !ok || want != pass {
			s.unauthorized(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Basic")
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}
