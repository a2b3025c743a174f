package main

import (
	"os"

	"fxcalc/internal/app"

	"github.com/sirupsen/logrus"
)

func main() {
	if err := app.Run(); err != nil {
		logrus.WithError(err).Error("fxcalc stopped")
		os.Exit(1)
	}
}
