// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"net/http"

	"github.com/absmach/certkeeper"
	"github.com/absmach/certkeeper/monitoring"
)

var (
	_ certkeeper.Response = (*alertsPageRes)(nil)
	_ certkeeper.Response = (*alertRes)(nil)
	_ certkeeper.Response = (*summaryRes)(nil)
)

type alertsPageRes struct {
	monitoring.AlertsPage
}

func (res alertsPageRes) Code() int {
	return http.StatusOK
}

func (res alertsPageRes) Headers() map[string]string {
	return map[string]string{}
}

func (res alertsPageRes) Empty() bool {
	return false
}

type alertRes struct {
	monitoring.Alert
}

func (res alertRes) Code() int {
	return http.StatusOK
}

func (res alertRes) Headers() map[string]string {
	return map[string]string{}
}

func (res alertRes) Empty() bool {
	return false
}

type summaryRes struct {
	monitoring.ScanSummary
}

func (res summaryRes) Code() int {
	return http.StatusOK
}

func (res summaryRes) Headers() map[string]string {
	return map[string]string{}
}

func (res summaryRes) Empty() bool {
	return false
}
