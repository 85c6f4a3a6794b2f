package main

import (
	"github.com/hibiken/asynq"

	notifJob "bookstore-settlement/internal/domains/notification/job"
	notifService "bookstore-settlement/internal/domains/notification/service"
	paymentJob "bookstore-settlement/internal/domains/payment/job"
	"bookstore-settlement/internal/shared"
	"bookstore-settlement/pkg/container"
)

// registerHandlers wires every task type the worker consumes.
func registerHandlers(mux *asynq.ServeMux, c *container.Container) {
	sweep := paymentJob.NewSweepExpiredHandler(c.PaymentService)
	deliver := notifJob.NewDeliverEventHandler(notifService.NewLogNotifier())

	mux.HandleFunc(shared.TypeSweepExpiredPayments, sweep.ProcessTask)
	mux.HandleFunc(shared.TypeDeliverEvent, deliver.ProcessTask)
}
