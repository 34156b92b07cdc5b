package utils

import (
	"fmt"

	"cmsledger/config"

	"github.com/cloudinary/cloudinary-go/v2"
)

// NewCloudinary builds a Cloudinary client from CLOUDINARY_URL.
func NewCloudinary() (*cloudinary.Cloudinary, error) {
	if config.AppConfig.CloudinaryURL == "" {
		return nil, fmt.Errorf("utils.NewCloudinary: CLOUDINARY_URL not set")
	}
	cld, err := cloudinary.NewFromURL(config.AppConfig.CloudinaryURL)
	if err != nil {
		return nil, fmt.Errorf("utils.NewCloudinary: failed to initialize Cloudinary: %w", err)
	}
	return cld, nil
}
