//go:build gomock || generate

package inspector

//go:generate sh -c "go run go.uber.org/mock/mockgen -typed -build_flags=\"-tags=gomock\" -package inspector_test -self_package github.com/relaytap/inspector -destination mock_observer_test.go github.com/relaytap/inspector Observer && go run golang.org/x/tools/cmd/goimports -w mock_observer_test.go"
