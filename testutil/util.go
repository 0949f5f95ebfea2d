/*
Copyright 2024 The kaniko-remote Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package testutil

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"k8s.io/apimachinery/pkg/api/resource"
	"k8s.io/apimachinery/pkg/watch"
	k8stesting "k8s.io/client-go/testing"
)

// T wraps testing.T with assertion helpers.
type T struct {
	*testing.T
}

// Run runs a subtest with a T.
func Run(t *testing.T, name string, f func(t *T)) {
	t.Helper()
	t.Run(name, func(tt *testing.T) {
		tt.Helper()
		f(&T{T: tt})
	})
}

// Override sets a package variable for the duration of the test.
func (t *T) Override(dest, tmp interface{}) {
	t.Helper()
	restore, err := override(dest, tmp)
	if err != nil {
		t.Fatalf("unable to override value: %v", err)
	}
	t.Cleanup(restore)
}

func override(dest, tmp interface{}) (func(), error) {
	dValue := reflect.ValueOf(dest)
	if dValue.Kind() != reflect.Ptr {
		return nil, errors.New("not a pointer")
	}
	dValue = dValue.Elem()
	tValue := reflect.ValueOf(tmp)
	if tmp == nil {
		tValue = reflect.Zero(dValue.Type())
	}
	if !tValue.Type().AssignableTo(dValue.Type()) {
		return nil, fmt.Errorf("cannot assign %s to %s", tValue.Type(), dValue.Type())
	}
	saved := reflect.New(dValue.Type()).Elem()
	saved.Set(dValue)
	dValue.Set(tValue)
	return func() { dValue.Set(saved) }, nil
}

// SetEnvs sets environment variables for the duration of the test.
func (t *T) SetEnvs(envs map[string]string) {
	for key, value := range envs {
		t.Setenv(key, value)
	}
}

func (t *T) UnsetEnv(key string) {
	prevValue, ok := os.LookupEnv(key)
	if ok {
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("cannot unset environment variable: %v", err)
		}
		t.Cleanup(func() {
			os.Setenv(key, prevValue)
		})
	}
}

func (t *T) CheckDeepEqual(expected, actual interface{}, opts ...cmp.Option) {
	t.Helper()
	CheckDeepEqual(t.T, expected, actual, opts...)
}

func (t *T) CheckErrorAndDeepEqual(shouldErr bool, err error, expected, actual interface{}, opts ...cmp.Option) {
	t.Helper()
	CheckErrorAndDeepEqual(t.T, shouldErr, err, expected, actual, opts...)
}

func (t *T) CheckError(shouldErr bool, err error) {
	t.Helper()
	CheckError(t.T, shouldErr, err)
}

func (t *T) CheckNoError(err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("Unexpected error: %s", err)
	}
}

func (t *T) CheckErrorContains(message string, err error) {
	t.Helper()
	CheckErrorContains(t.T, message, err)
}

func (t *T) CheckTrue(value bool) {
	t.Helper()
	if !value {
		t.Error("expected true, got false")
	}
}

func (t *T) CheckFalse(value bool) {
	t.Helper()
	if value {
		t.Error("expected false, got true")
	}
}

func (t *T) CheckContains(expected, actual string) {
	t.Helper()
	if !strings.Contains(actual, expected) {
		t.Errorf("expected output %q to contain %q", actual, expected)
	}
}

func (t *T) CheckEmpty(actual interface{}) {
	t.Helper()
	v := reflect.ValueOf(actual)
	if actual != nil && v.Len() != 0 {
		t.Errorf("expected empty, got %+v", actual)
	}
}

// CheckErrorType checks that err is of the same type as target.
func (t *T) CheckErrorType(target interface{}, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, but returned none")
	}
	if !errors.As(err, target) {
		t.Errorf("expected error of type %T, got %T: %v", target, err, err)
	}
}

func CheckDeepEqual(t *testing.T, expected, actual interface{}, opts ...cmp.Option) {
	t.Helper()
	opts = append(opts, cmpopts.EquateEmpty(), cmp.Comparer(func(a, b resource.Quantity) bool { return a.Cmp(b) == 0 }))
	if diff := cmp.Diff(expected, actual, opts...); diff != "" {
		t.Errorf("%T differ (-got, +want): %s", expected, diff)
	}
}

func CheckErrorAndDeepEqual(t *testing.T, shouldErr bool, err error, expected, actual interface{}, opts ...cmp.Option) {
	t.Helper()
	if err := checkErr(shouldErr, err); err != nil {
		t.Error(err)
		return
	}
	if !shouldErr {
		CheckDeepEqual(t, expected, actual, opts...)
	}
}

func CheckError(t *testing.T, shouldErr bool, err error) {
	t.Helper()
	if err := checkErr(shouldErr, err); err != nil {
		t.Error(err)
	}
}

func CheckErrorContains(t *testing.T, message string, err error) {
	t.Helper()
	if err == nil {
		t.Error("expected error, but returned none")
		return
	}
	if !strings.Contains(err.Error(), message) {
		t.Errorf("expected message [%s] not found in error: %s", message, err.Error())
	}
}

func checkErr(shouldErr bool, err error) error {
	if err == nil && shouldErr {
		return errors.New("expected error, but returned none")
	}
	if err != nil && !shouldErr {
		return fmt.Errorf("unexpected error: %s", err)
	}
	return nil
}

// SetupFakeWatcher makes a fake clientset return the given watcher.
func SetupFakeWatcher(w watch.Interface) func(a k8stesting.Action) (handled bool, ret watch.Interface, err error) {
	return func(k8stesting.Action) (handled bool, ret watch.Interface, err error) {
		return true, w, nil
	}
}
