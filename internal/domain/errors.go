package domain

import "errors"

var ErrCustomerNotFound = errors.New("customer not found")
var ErrPublishFailed = errors.New("enriched event publish failed")
var ErrDeliveryFailed = errors.New("webhook delivery failed")
