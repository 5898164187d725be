package storage

import (
	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes mounts the image upload endpoint and serves stored files under /uploads.
func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Static("/uploads", svc.Dir())

	r.Post("/post/images", authMiddleware, func(c *fiber.Ctx) error {
		form, err := c.MultipartForm()
		if err != nil {
			return ErrNoFiles
		}
		names, err := svc.Save(form.File["image"])
		if err != nil {
			return err
		}
		return c.JSON(names)
	})
}
