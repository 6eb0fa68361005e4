// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"net/http"

	"github.com/absmach/certkeeper"
	"github.com/absmach/certkeeper/certs"
)

var (
	_ certkeeper.Response = (*certRes)(nil)
	_ certkeeper.Response = (*bulkRes)(nil)
	_ certkeeper.Response = (*viewRes)(nil)
	_ certkeeper.Response = (*revokeRes)(nil)
	_ certkeeper.Response = (*pageRes)(nil)
	_ certkeeper.Response = (*statusRes)(nil)
	_ certkeeper.Response = (*pemRes)(nil)
)

type certRes struct {
	certs.Bundle
	created bool
}

func (res certRes) Code() int {
	if res.created {
		return http.StatusCreated
	}
	return http.StatusOK
}

func (res certRes) Headers() map[string]string {
	return map[string]string{}
}

func (res certRes) Empty() bool {
	return false
}

type bulkRes struct {
	certs.BulkResult
}

func (res bulkRes) Code() int {
	return http.StatusMultiStatus
}

func (res bulkRes) Headers() map[string]string {
	return map[string]string{}
}

func (res bulkRes) Empty() bool {
	return false
}

type viewRes struct {
	certs.Cert
}

func (res viewRes) Code() int {
	return http.StatusOK
}

func (res viewRes) Headers() map[string]string {
	return map[string]string{}
}

func (res viewRes) Empty() bool {
	return false
}

type revokeRes struct {
	certs.Revoke
}

func (res revokeRes) Code() int {
	return http.StatusOK
}

func (res revokeRes) Headers() map[string]string {
	return map[string]string{}
}

func (res revokeRes) Empty() bool {
	return false
}

type pageRes struct {
	certs.Page
}

func (res pageRes) Code() int {
	return http.StatusOK
}

func (res pageRes) Headers() map[string]string {
	return map[string]string{}
}

func (res pageRes) Empty() bool {
	return false
}

type statusRes struct {
	certs.DeviceStatus
}

func (res statusRes) Code() int {
	return http.StatusOK
}

func (res statusRes) Headers() map[string]string {
	return map[string]string{}
}

func (res statusRes) Empty() bool {
	return false
}

// pemRes is written raw by the transport instead of JSON encoded.
type pemRes struct {
	data []byte
}

func (res pemRes) Code() int {
	return http.StatusOK
}

func (res pemRes) Headers() map[string]string {
	return map[string]string{"Content-Type": "application/x-pem-file"}
}

func (res pemRes) Empty() bool {
	return false
}
