package echoServer

import (
	"net/http"

	"github.com/photsathonspd1-create/bann-mae-villa-sub000/app/echoServer/controller/availability"
	"github.com/photsathonspd1-create/bann-mae-villa-sub000/app/echoServer/controller/booking"
	"github.com/photsathonspd1-create/bann-mae-villa-sub000/docs"
	"github.com/photsathonspd1-create/bann-mae-villa-sub000/util/jwt"

	gojwt "github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	echoSwagger "github.com/swaggo/echo-swagger"
)

type C struct {
	Booking      *booking.Controller
	Availability *availability.Controller
	JWTSecret    string
}

func Register(e *echo.Echo, c C) {
	// Public
	pub := e.Group("/v1")
	pub.GET("/villas/:villaId/availability", c.Availability.BlockedDays)
	pub.GET("/villas/:villaId/availability/:date", c.Availability.Day)

	// Admin
	admin := e.Group("/v1/admin")
	admin.Use(echojwt.WithConfig(echojwt.Config{
		SigningKey:    []byte(c.JWTSecret),
		SigningMethod: "HS256",
		NewClaimsFunc: func(c echo.Context) gojwt.Claims { return gojwt.MapClaims{} },
		TokenLookup:   "header:Authorization:Bearer ",
	}))
	admin.Use(RequireRole(jwt.RoleAdmin))

	admin.POST("/bookings", c.Booking.Create)
	admin.POST("/bookings/holds", c.Booking.Hold)
	admin.GET("/bookings/:id", c.Booking.Detail)
	admin.PATCH("/bookings/:id", c.Booking.Update)
	admin.PATCH("/bookings/:id/status", c.Booking.ChangeStatus)
	admin.DELETE("/bookings/:id", c.Booking.Remove)
	admin.GET("/villas/:villaId/bookings", c.Booking.ListByVilla)
}

// RegisterDocs serves the OpenAPI document and a Swagger UI reading it.
func RegisterDocs(e *echo.Echo) {
	e.GET("/openapi.json", func(c echo.Context) error {
		return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, docs.SwaggerJSON)
	})
	e.GET("/swagger/*", echoSwagger.EchoWrapHandler(echoSwagger.URL("/openapi.json")))
}
