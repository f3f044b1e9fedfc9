// Package httpapp serves the Inkwell JSON API.
//
//	@title						Inkwell API
//	@version					1.0
//	@description				A blog backend with users, posts, and votes.
//	@BasePath					/
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token from POST /login, as "Bearer {token}"
package httpapp
