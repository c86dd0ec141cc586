// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package customop

import (
	"errors"

	"k8s.io/klog/v2"

	"github.com/born-ml/ortkit/ort"
)

// Registration is a custom operator domain together with the operators
// added to it.
type Registration struct {
	api    ort.API
	Domain ort.CustomOpDomain
	Ops    []*Op
}

// RegisterAll creates the domain domainName and adds one operator per
// descriptor, in order.
//
// The first failure stops registration and is returned. Operators added
// before the failure stay in the domain: the returned Registration is non-nil
// whenever the domain was created, and lists exactly the operators that were
// added.
func RegisterAll(api ort.API, allocator ort.Allocator, domainName string, descs []Descriptor) (*Registration, error) {
	domain, err := api.CreateCustomOpDomain(domainName)
	if err != nil {
		return nil, err
	}

	reg := &Registration{
		api:    api,
		Domain: domain,
		Ops:    make([]*Op, 0, len(descs)),
	}
	for _, desc := range descs {
		op, err := New(api, allocator, desc)
		if err != nil {
			return reg, err
		}
		if err := api.CustomOpDomainAdd(domain, op); err != nil {
			// The op never reached the domain, so it is ours to free.
			if closeErr := op.Close(); closeErr != nil {
				klog.Warningf("customop: releasing %q after failed add: %v", desc.Name, closeErr)
			}
			return reg, err
		}
		reg.Ops = append(reg.Ops, op)
	}
	klog.V(3).Infof("customop: registered %d operators in domain %q", len(reg.Ops), domainName)
	return reg, nil
}

// Close releases the domain and then every operator. Sessions created with
// the domain must be released first.
func (r *Registration) Close() error {
	if r == nil {
		return nil
	}
	if r.Domain != 0 {
		r.api.ReleaseCustomOpDomain(r.Domain)
		r.Domain = 0
	}
	var errs []error
	for _, op := range r.Ops {
		if err := op.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.Ops = nil
	return errors.Join(errs...)
}
