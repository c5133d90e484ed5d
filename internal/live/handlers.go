package live

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Get("/:vehicleID/poll", func(c *fiber.Ctx) error {
		lastSeq, err := strconv.ParseInt(c.Query("last_sequence", "0"), 10, 64)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "last_sequence must be an integer")
		}
		return c.JSON(svc.Poll(c.Params("vehicleID"), lastSeq))
	})

	r.Post("/:vehicleID/positions", authMiddleware, func(c *fiber.Ctx) error {
		var fix Fix
		if err := c.BodyParser(&fix); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		fix.VehicleID = c.Params("vehicleID")
		snap, err := svc.Append(c.Context(), fix)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(snap)
	})

	r.Post("/:vehicleID/complete", authMiddleware, func(c *fiber.Ctx) error {
		snap, err := svc.Complete(c.Context(), c.Params("vehicleID"))
		if err != nil {
			if errors.Is(err, ErrNoActiveTrip) {
				return fiber.NewError(fiber.StatusNotFound, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(snap)
	})
}
